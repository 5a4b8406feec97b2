package tenants

import "errors"

// Vertical identifies the business line a tenant operates in. The console
// serves three verticals from a single frontend; screens key off this value.
type Vertical string

const (
	VerticalEcommerce  Vertical = "ecommerce"
	VerticalProperties Vertical = "properties"
	VerticalTours      Vertical = "tours"
)

// Theme carries per-tenant styling returned by the backend alongside the
// tenant record. All fields are optional.
type Theme struct {
	PrimaryColor   string `json:"primary_color,omitempty"`
	SecondaryColor string `json:"secondary_color,omitempty"`
	LogoURL        string `json:"logo,omitempty"`
}

// Tenant represents the tenant record returned by the login and refresh
// endpoints. SchemaName is the load-bearing field: it selects the tenant
// host for every subsequent API call.
type Tenant struct {
	ID         string   `json:"id,omitempty"`
	SchemaName string   `json:"schema_name"`
	Name       string   `json:"name,omitempty"`
	Domain     string   `json:"domain,omitempty"`
	Vertical   Vertical `json:"vertical,omitempty"`
	Theme      *Theme   `json:"theme,omitempty"`
}

var MissingSchemaNameErr = errors.New("tenant missing schema_name")

// Validate checks the fields the session core depends on. A tenant record
// without a schema name cannot be routed to and is treated as invalid.
func (t *Tenant) Validate() error {
	if t == nil || t.SchemaName == "" {
		return MissingSchemaNameErr
	}
	return nil
}
