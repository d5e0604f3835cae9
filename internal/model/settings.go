package model

// Partner is a referral partner entry from the settings collections.
type Partner struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

// StatusGroup is a named, ordered status list configured per board column.
type StatusGroup struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

// Settings bundles the simple key→list collections synchronized alongside
// cases. They carry no per-record timestamps and are merged remote-wins.
type Settings struct {
	Partners []Partner     `json:"partners"`
	Statuses []StatusGroup `json:"statuses"`
	// Managers is the allow-list of manager identities.
	Managers []string `json:"managers"`
}

// Clone returns a deep copy of the settings bundle.
func (s Settings) Clone() Settings {
	out := Settings{
		Partners: append([]Partner(nil), s.Partners...),
		Managers: append([]string(nil), s.Managers...),
	}
	out.Statuses = make([]StatusGroup, len(s.Statuses))
	for i, g := range s.Statuses {
		out.Statuses[i] = StatusGroup{Name: g.Name, Items: append([]string(nil), g.Items...)}
	}
	return out
}
