package pipeline

const (
	// MailExtension is the suffix of vendor mail files picked up by discovery.
	MailExtension = ".mail"
)
