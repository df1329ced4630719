package metadata

import "strings"

// Classifier infers open-source status from a model's display name.
type Classifier struct {
	openSource  []string
	proprietary []string
}

// NewClassifier builds a classifier from the rule pattern lists.
func NewClassifier(r Rules) *Classifier {
	return &Classifier{
		openSource:  lowerAll(r.OpenSourcePatterns),
		proprietary: lowerAll(r.ProprietaryPatterns),
	}
}

// IsOpenSource returns true on the first open-source pattern match, false on
// the first proprietary match, and nil when neither list matches.
func (c *Classifier) IsOpenSource(name string) *bool {
	lower := strings.ToLower(name)
	for _, p := range c.openSource {
		if strings.Contains(lower, p) {
			v := true
			return &v
		}
	}
	for _, p := range c.proprietary {
		if strings.Contains(lower, p) {
			v := false
			return &v
		}
	}
	return nil
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, strings.ToLower(s))
		}
	}
	return out
}
