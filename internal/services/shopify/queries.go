package shopify

const metafieldsFragment = `metafields(first: 20, namespace: "unleashed") { nodes { namespace key type value } }`

const locationsQuery = `
query Locations($cursor: String) {
  locations(first: 100, after: $cursor, includeInactive: false) {
    nodes {
      id
      name
      isActive
      address { address1 address2 city provinceCode countryCode zip phone }
      ` + metafieldsFragment + `
    }
    pageInfo { hasNextPage endCursor }
  }
}`

const customersQuery = `
query Customers($cursor: String) {
  customers(first: 100, after: $cursor) {
    nodes {
      id
      firstName
      lastName
      email
      phone
      ` + metafieldsFragment + `
    }
    pageInfo { hasNextPage endCursor }
  }
}`

const productsQuery = `
query Products($cursor: String) {
  products(first: 25, after: $cursor) {
    nodes {
      id
      title
      handle
      descriptionHtml
      productType
      vendor
      status
      tags
      options { name values }
      variants(first: 100) {
        nodes {
          id
          sku
          title
          price
          selectedOptions { name value }
          inventoryItem {
            id
            tracked
            measurement { weight { value unit } }
            inventoryLevels(first: 25) {
              nodes { location { id } quantities(names: ["available"]) { name quantity } }
            }
          }
          ` + metafieldsFragment + `
        }
      }
      media(first: 50) {
        nodes { id mediaContentType ... on MediaImage { image { url altText } } }
      }
      ` + metafieldsFragment + `
    }
    pageInfo { hasNextPage endCursor }
  }
}`

const userErrorsFragment = `userErrors { field message }`

const locationAddMutation = `
mutation LocationAdd($input: LocationAddInput!) {
  locationAdd(input: $input) {
    location { id }
    ` + userErrorsFragment + `
  }
}`

const locationEditMutation = `
mutation LocationEdit($id: ID!, $input: LocationEditInput!) {
  locationEdit(id: $id, input: $input) {
    location { id }
    ` + userErrorsFragment + `
  }
}`

const customerCreateMutation = `
mutation CustomerCreate($input: CustomerInput!) {
  customerCreate(input: $input) {
    customer { id }
    ` + userErrorsFragment + `
  }
}`

const customerUpdateMutation = `
mutation CustomerUpdate($input: CustomerInput!) {
  customerUpdate(input: $input) {
    customer { id }
    ` + userErrorsFragment + `
  }
}`

const productSetMutation = `
mutation ProductSet($input: ProductSetInput!) {
  productSet(input: $input, synchronous: true) {
    product {
      id
      variants(first: 100) { nodes { id sku inventoryItem { id } } }
    }
    userErrors { field message code }
  }
}`

const variantsBulkDeleteMutation = `
mutation ProductVariantsBulkDelete($productId: ID!, $variantsIds: [ID!]!) {
  productVariantsBulkDelete(productId: $productId, variantsIds: $variantsIds) {
    product { id }
    ` + userErrorsFragment + `
  }
}`

const metafieldsDeleteMutation = `
mutation MetafieldsDelete($metafields: [MetafieldIdentifierInput!]!) {
  metafieldsDelete(metafields: $metafields) {
    deletedMetafields { ownerId namespace key }
    ` + userErrorsFragment + `
  }
}`

const inventorySetQuantitiesMutation = `
mutation InventorySetQuantities($input: InventorySetQuantitiesInput!) {
  inventorySetQuantities(input: $input) {
    inventoryAdjustmentGroup { id }
    userErrors { field message code }
  }
}`

const productUpdateMutation = `
mutation ProductUpdate($product: ProductUpdateInput!, $media: [CreateMediaInput!]) {
  productUpdate(product: $product, media: $media) {
    product { id status }
    ` + userErrorsFragment + `
  }
}`

// Bulk operations take the mutation text without variables' values; each
// JSONL line supplies one set of variables.
const bulkProductSetMutation = `mutation call($input: ProductSetInput!) { productSet(input: $input) { product { id } userErrors { field message code } } }`

const bulkCustomerCreateMutation = `mutation call($input: CustomerInput!) { customerCreate(input: $input) { customer { id } userErrors { field message } } }`

const bulkCustomerUpdateMutation = `mutation call($input: CustomerInput!) { customerUpdate(input: $input) { customer { id } userErrors { field message } } }`

const bulkProductUpdateMutation = `mutation call($product: ProductUpdateInput!) { productUpdate(product: $product) { product { id } userErrors { field message } } }`

const stagedUploadsCreateMutation = `
mutation StagedUploadsCreate($input: [StagedUploadInput!]!) {
  stagedUploadsCreate(input: $input) {
    stagedTargets { url resourceUrl parameters { name value } }
    ` + userErrorsFragment + `
  }
}`

const bulkOperationRunMutation = `
mutation BulkOperationRunMutation($mutation: String!, $stagedUploadPath: String!) {
  bulkOperationRunMutation(mutation: $mutation, stagedUploadPath: $stagedUploadPath) {
    bulkOperation { id status }
    ` + userErrorsFragment + `
  }
}`

const bulkOperationQuery = `
query BulkOperation($id: ID!) {
  node(id: $id) {
    ... on BulkOperation { id status errorCode objectCount url partialDataUrl }
  }
}`
