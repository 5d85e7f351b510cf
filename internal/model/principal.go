package model

// Principal is the authenticated identity behind a request. A zero value
// is an anonymous caller.
type Principal struct {
	Username    string `json:"username"`
	IsSuperuser bool   `json:"is_superuser"`
}

func (p *Principal) Anonymous() bool {
	return p == nil || p.Username == ""
}
