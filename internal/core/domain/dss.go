package domain

// DSS protocol status codes. The major/minor URIs are carried verbatim
// from the signing service so callers can interpret them.
const (
	DSSMajorSuccess        = "urn:oasis:names:tc:dss:1.0:resultmajor:Success"
	DSSMajorRequesterError = "urn:oasis:names:tc:dss:1.0:resultmajor:RequesterError"
	DSSMajorResponderError = "urn:oasis:names:tc:dss:1.0:resultmajor:ResponderError"

	// DSSMinorUserCancel is the distinguished minor status meaning the
	// signer cancelled the operation.
	DSSMinorUserCancel = "http://id.elegnamnden.se/sig-status/1.0/user-cancel"
)

// DSSStatus is the protocol status of a sign response.
type DSSStatus struct {
	MajorCode string
	MinorCode string
	Message   string
}

// Success reports whether the status is the DSS success major code.
func (s DSSStatus) Success() bool {
	return s.MajorCode == DSSMajorSuccess
}

// UserCancel reports whether the status denotes a user cancellation.
func (s DSSStatus) UserCancel() bool {
	return s.MinorCode == DSSMinorUserCancel
}
