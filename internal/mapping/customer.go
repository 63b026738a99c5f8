package mapping

import (
	"strings"

	"stocksync/internal/logger"
	"stocksync/internal/models"
	"stocksync/internal/normalize"
)

const defaultPriceTier = "Default"

// CustomerRecord is the desired state of one destination customer.
type CustomerRecord struct {
	SourceID      string             `json:"sourceId"`
	CustomerCode  string             `json:"customerCode"`
	DestinationID string             `json:"destinationId,omitempty"`
	FirstName     string             `json:"firstName"`
	LastName      string             `json:"lastName"`
	Email         string             `json:"email"`
	Phone         string             `json:"phone,omitempty"`
	Metafields    []models.Metafield `json:"metafields"`
	Changes       []Change           `json:"changes,omitempty"`
}

type CustomerMatcher struct {
	logger *logger.Logger
}

func NewCustomerMatcher(logger *logger.Logger) *CustomerMatcher {
	return &CustomerMatcher{logger: logger}
}

type customerIndex struct {
	byEmail map[string]models.DestinationCustomer
	byName  map[string]models.DestinationCustomer
	byCode  map[string]models.DestinationCustomer
}

func newCustomerIndex(customers []models.DestinationCustomer) customerIndex {
	idx := customerIndex{
		byEmail: make(map[string]models.DestinationCustomer),
		byName:  make(map[string]models.DestinationCustomer),
		byCode:  make(map[string]models.DestinationCustomer),
	}
	put := func(m map[string]models.DestinationCustomer, key string, c models.DestinationCustomer) {
		if key == "" {
			return
		}
		if _, ok := m[key]; !ok {
			m[key] = c
		}
	}
	for _, c := range customers {
		put(idx.byEmail, foldKey(c.Email), c)
		put(idx.byName, fullNameKey(c.FirstName, c.LastName), c)
		put(idx.byCode, strings.TrimSpace(c.CustomerCode()), c)
	}
	return idx
}

// lookup checks email first, then full name, then the stored customer code.
func (idx customerIndex) lookup(r CustomerRecord) (models.DestinationCustomer, string, bool) {
	if c, ok := idx.byEmail[foldKey(r.Email)]; ok {
		return c, "email", true
	}
	if key := fullNameKey(r.FirstName, r.LastName); key != "" {
		if c, ok := idx.byName[key]; ok {
			return c, "name", true
		}
	}
	if c, ok := idx.byCode[r.CustomerCode]; ok {
		return c, "code", true
	}
	return models.DestinationCustomer{}, "", false
}

func fullNameKey(first, last string) string {
	return foldKey(strings.Join(strings.Fields(first+" "+last), " "))
}

// Match partitions source customers into customers to create or update.
func (m *CustomerMatcher) Match(sources []models.SourceCustomer, customers []models.DestinationCustomer) (*Result[CustomerRecord], error) {
	ids := make([]string, len(customers))
	for i, c := range customers {
		ids[i] = c.ID
	}
	if err := uniqueIDs("customer", ids); err != nil {
		return nil, err
	}

	idx := newCustomerIndex(customers)
	claimed := make(map[string]string)

	res := fold(sources, models.SourceCustomer.Identity, func(s models.SourceCustomer) outcome[CustomerRecord] {
		id := s.Identity()
		if strings.TrimSpace(s.Code) == "" {
			return fail[CustomerRecord](id, "code", "customer code is blank")
		}

		record := normalizeCustomer(s)
		if !normalize.ValidEmail(record.Email) {
			return fail[CustomerRecord](id, "email", "invalid email address %q", record.Email)
		}

		existing, matchedBy, ok := idx.lookup(record)
		if !ok {
			return create(record)
		}
		if other := claimed[existing.ID]; other != "" {
			return fail[CustomerRecord](id, matchedBy, "destination customer %s already matched source customer %s", existing.ID, other)
		}
		claimed[existing.ID] = id

		record.DestinationID = existing.ID
		record.Changes = diffCustomer(record, existing)
		if len(record.Changes) == 0 {
			return skip[CustomerRecord](id, existing.ID, ReasonIdenticalData)
		}
		return update(record)
	})

	m.logger.Info("Customer mapping: %d to create, %d to update, %d skipped, %d errors",
		len(res.ToCreate), len(res.ToUpdate), len(res.Skipped), len(res.Errors))
	return &res, nil
}

func normalizeCustomer(s models.SourceCustomer) CustomerRecord {
	code := strings.TrimSpace(s.Code)

	email := strings.TrimSpace(s.Email)
	first, last := strings.TrimSpace(s.FirstName), strings.TrimSpace(s.LastName)
	phone := strings.TrimSpace(s.PhoneNumber)
	if c := s.Contact; c != nil {
		email = strings.TrimSpace(c.EmailAddress)
		first, last = strings.TrimSpace(c.FirstName), strings.TrimSpace(c.LastName)
		phone = normalize.DefaultString(c.PhoneNumber, c.MobilePhone)
	}
	if email == "" {
		email = normalize.PlaceholderEmail(code)
	}
	if first == "" && last == "" {
		first, last = normalize.SplitName(s.Name)
	}

	return CustomerRecord{
		SourceID:     s.Identity(),
		CustomerCode: code,
		FirstName:    first,
		LastName:     last,
		Email:        email,
		Phone:        phone,
		Metafields: []models.Metafield{
			{Namespace: models.MetafieldNamespace, Key: models.MetafieldCustomerCode, Type: "single_line_text_field", Value: code},
			{Namespace: models.MetafieldNamespace, Key: models.MetafieldCustomerName, Type: "single_line_text_field", Value: strings.TrimSpace(s.Name)},
			{Namespace: models.MetafieldNamespace, Key: models.MetafieldPriceTier, Type: "single_line_text_field", Value: normalize.DefaultString(s.SellPriceTier, defaultPriceTier)},
		},
	}
}

func diffCustomer(want CustomerRecord, have models.DestinationCustomer) []Change {
	var changes []Change
	add := func(field, from, to string) {
		if strings.TrimSpace(from) != strings.TrimSpace(to) {
			changes = append(changes, Change{Field: field, From: from, To: to})
		}
	}
	add("firstName", have.FirstName, want.FirstName)
	add("lastName", have.LastName, want.LastName)
	if !strings.EqualFold(strings.TrimSpace(have.Email), want.Email) {
		changes = append(changes, Change{Field: "email", From: have.Email, To: want.Email})
	}
	if want.Phone != "" {
		add("phone", have.Phone, want.Phone)
	}
	for _, mf := range want.Metafields {
		add("metafield."+mf.Key, models.MetafieldValue(have.Metafields, mf.Namespace, mf.Key), mf.Value)
	}
	return changes
}
