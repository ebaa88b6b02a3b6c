package archive

import "strings"

// IsLocal reports whether the ingress plot ID appears in any egress
// candidate's raw command line.
//
// This is a pure containment test with no normalization: when true, the
// same physical plot is simultaneously being pushed out from this host,
// so the inbound copy is not a genuine network hop. Short or non-unique
// identifier substrings can produce false positives; that risk is
// accepted rather than corrected.
func IsLocal(plotID string, egress []EgressJob) bool {
	if plotID == "" {
		return false
	}
	for _, e := range egress {
		if strings.Contains(e.CommandLine, plotID) {
			return true
		}
	}
	return false
}

// MarkLocality sets the Local flag on every ingress job in the registry
// by cross-referencing the concurrently observed egress jobs.
func MarkLocality(reg *Registry, egress []EgressJob) {
	for _, j := range reg.Jobs() {
		j.Local = IsLocal(j.PlotID, egress)
	}
}
