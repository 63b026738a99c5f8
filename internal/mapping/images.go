package mapping

import (
	"net/url"
	"path"
	"strings"

	"stocksync/internal/models"
)

// ImageRecord is one image to attach to a destination product.
type ImageRecord struct {
	URL      string `json:"url"`
	FileName string `json:"fileName"`
	Alt      string `json:"alt,omitempty"`
}

// imageFileName is the last path segment of an image URL with the query
// string dropped. It is the identity used to de-duplicate images.
func imageFileName(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		return strings.ToLower(path.Base(u.Path))
	}
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	return strings.ToLower(path.Base(raw))
}

// collectImages gathers images from the structured list (default image
// first), the legacy single URL and the attachment list, keeping the first
// occurrence of each file name.
func collectImages(p models.SourceProduct, alt string) []ImageRecord {
	var urls []string
	for _, img := range p.Images {
		if img.IsDefault {
			urls = append(urls, img.URL)
		}
	}
	for _, img := range p.Images {
		if !img.IsDefault {
			urls = append(urls, img.URL)
		}
	}
	urls = append(urls, p.ImageURL)
	for _, a := range p.Attachments {
		if a.MimeType != "" && !strings.HasPrefix(a.MimeType, "image/") {
			continue
		}
		urls = append(urls, a.DownloadURL)
	}

	var out []ImageRecord
	seen := make(map[string]bool)
	for _, u := range urls {
		name := imageFileName(u)
		if name == "" || name == "." || name == "/" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, ImageRecord{URL: strings.TrimSpace(u), FileName: name, Alt: alt})
	}
	return out
}

// appendImages adds images not already present by file name.
func appendImages(dst []ImageRecord, src []ImageRecord) []ImageRecord {
	seen := make(map[string]bool, len(dst))
	for _, img := range dst {
		seen[img.FileName] = true
	}
	for _, img := range src {
		if !seen[img.FileName] {
			seen[img.FileName] = true
			dst = append(dst, img)
		}
	}
	return dst
}

// missingImages returns the images whose file name is not on the destination.
func missingImages(want []ImageRecord, have []models.DestinationImage) []ImageRecord {
	present := make(map[string]bool, len(have))
	for _, img := range have {
		present[imageFileName(img.URL)] = true
	}
	var missing []ImageRecord
	for _, img := range want {
		if !present[img.FileName] {
			missing = append(missing, img)
		}
	}
	return missing
}
