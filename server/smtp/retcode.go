package smtp

// SMTP reply codes (RFC 5321 §4.2.3)
const (
	CodeServiceReady       = "220"
	CodeServiceClosing     = "221"
	CodeAuthSuccessful     = "235"
	CodeMailOK             = "250"
	CodeCannotVerify       = "252"
	CodeAuthContinue       = "334"
	CodeStartMailInput     = "354"
	CodeServiceUnavailable = "421"
	CodeLocalError         = "451"
	CodeInsufficientStore  = "452"
	CodeTLSNotAvailable    = "454"
	CodeSyntaxError        = "500"
	CodeSyntaxErrorArgs    = "501"
	CodeNotImplemented     = "502"
	CodeBadSequence        = "503"
	CodeParamNotImpl       = "504"
	CodeAuthRequired       = "530"
	CodeAuthFailed         = "535"
	CodeMailboxUnavailable = "550"
	CodeExceededStorage    = "552"
	CodeMailboxSyntax      = "553"
	CodeTransactionFailed  = "554"
)
