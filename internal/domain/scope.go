package domain

// BusinessModel is the first level of the tenancy key (e.g. "marketplace", "saas").
type BusinessModel string

// Scope identifies one tenant inside a business model.
type Scope struct {
	BusinessModel BusinessModel `json:"business_model" yaml:"business_model"`
	TenantID      string        `json:"tenant_id" yaml:"tenant_id"`
}

// Key renders the scope as "<business model>/<tenant>".
func (s Scope) Key() string {
	return string(s.BusinessModel) + "/" + s.TenantID
}

// IsZero reports whether the scope is unset.
func (s Scope) IsZero() bool {
	return s.BusinessModel == "" && s.TenantID == ""
}
