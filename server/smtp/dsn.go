package smtp

import "fmt"

// Enhanced status code classes (RFC 3463 §2)
const (
	DSNSuccess   = 2
	DSNTemporary = 4
	DSNPermanent = 5
)

// Enhanced status subject.detail codes (RFC 3463 §3)
const (
	DSNUndefined           = "0.0"
	DSNAddressOther        = "1.0"
	DSNAddressMailbox      = "1.1"
	DSNAddressSyntax       = "1.3"
	DSNAddressValid        = "1.5"
	DSNAddressSyntaxSender = "1.7"
	DSNMailboxFull         = "2.2"
	DSNMessageTooBig       = "3.4"
	DSNSystemOther         = "3.0"
	DSNNetworkOther        = "4.0"
	DSNDeliveryOther       = "5.0"
	DSNDeliveryBadSequence = "5.1"
	DSNDeliverySyntax      = "5.2"
	DSNDeliveryInvalidArg  = "5.4"
	DSNContentOther        = "6.0"
	DSNSecurityOther       = "7.0"
	DSNSecurityAuthFailure = "7.8"
)

// DSNStatus builds an RFC 3463 enhanced status code triple, e.g.
// DSNStatus(DSNPermanent, DSNDeliveryBadSequence) == "5.5.1".
func DSNStatus(class int, detail string) string {
	return fmt.Sprintf("%d.%s", class, detail)
}
