// internal/notify/messages.go
package notify

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const supportEmail = "support@traderiser.com"

// SupportAddress is where appeal submissions are routed.
func SupportAddress() string { return supportEmail }

// SuspensionNotice is sent when an account is suspended.
func SuspensionNotice(email, kind, reason string, until *time.Time) (subject, body string) {
	adverb := "Permanently"
	untilLine := "Indefinite – contact support for review."
	if kind == "temporary" {
		adverb = "Temporarily"
	}
	if until != nil {
		untilLine = "Until: " + until.Format("2006-01-02 15:04")
	}
	subject = fmt.Sprintf("TradeRiser Account %s Suspended", adverb)
	body = fmt.Sprintf(
		"Your TradeRiser account (%s) has been placed under a %s suspension.\n\nReason: %s\n%s\n\nContact %s for questions.",
		email, kind, reason, untilLine, supportEmail)
	return subject, body
}

// ReactivationNotice is sent when a suspension is lifted.
func ReactivationNotice(email string) (subject, body string) {
	return "TradeRiser Account Reactivated",
		fmt.Sprintf("Your TradeRiser account (%s) has been reactivated.", email)
}

// AppealApprovedNotice is sent when an appeal review approves the evidence.
func AppealApprovedNotice(username string) (subject, body string) {
	return "TradeRiser Account Recovered",
		fmt.Sprintf("Dear %s,\n\nYour appeal was approved. Your account has been recovered and is now active.\n\nWelcome back!\nTradeRiser Team", username)
}

// AppealRejectedNotice is sent when an appeal review rejects the evidence.
func AppealRejectedNotice(username, description string) (subject, body string) {
	return "TradeRiser Appeal Rejected",
		fmt.Sprintf("Dear %s,\n\nYour appeal was reviewed and rejected. Your account remains suspended.\n\nReason: %s\nContact support for more info.\nTradeRiser Team", username, description)
}

// AppealSubmittedNotice alerts support staff about a new appeal.
func AppealSubmittedNotice(username, email, description string) (subject, body string) {
	return fmt.Sprintf("Appeal Submitted: %s", username),
		fmt.Sprintf("User %s appealed: %s", email, description)
}

// DepositApprovedNotice is sent when a deposit completes.
func DepositApprovedNotice(username string, amount decimal.Decimal, currency string, credited decimal.Decimal, reference string) (subject, body string) {
	return "Deposit Approved!",
		fmt.Sprintf("Hi %s,\n\nYour deposit of %s %s has been approved.\n%s USD credited.\nRef: %s",
			username, amount.StringFixed(2), currency, credited.StringFixed(2), reference)
}

// DepositFailedNotice is sent when a deposit fails.
func DepositFailedNotice(username string, amount decimal.Decimal, currency, reference string) (subject, body string) {
	return "Deposit Failed",
		fmt.Sprintf("Hi %s,\n\nYour deposit of %s %s failed.\nRef: %s",
			username, amount.StringFixed(2), currency, reference)
}

// WithdrawalPaidNotice is sent when a withdrawal completes.
func WithdrawalPaidNotice(username string, amount decimal.Decimal, currency, destination, reference string) (subject, body string) {
	if destination == "" {
		destination = "your account"
	}
	return "Withdrawal Paid!",
		fmt.Sprintf("Hi %s,\n\n%s %s has been sent to %s.\nRef: %s",
			username, amount.StringFixed(2), currency, destination, reference)
}

// WithdrawalFailedNotice is sent when a withdrawal fails.
func WithdrawalFailedNotice(username string, amount decimal.Decimal, currency, reference string) (subject, body string) {
	return "Withdrawal Failed",
		fmt.Sprintf("Hi %s,\n\nYour withdrawal of %s %s failed.\nRef: %s",
			username, amount.StringFixed(2), currency, reference)
}

// TransferReceivedNotice is sent when an inbound transfer completes.
func TransferReceivedNotice(username string, amount decimal.Decimal, accountType, from, reference string) (subject, body string) {
	if from == "" {
		from = "another user"
	}
	return "You Received Funds!",
		fmt.Sprintf("Hi %s,\n\nYou have received $%s USD in your %s account.\nFrom: %s\nRef: %s",
			username, amount.StringFixed(2), accountType, from, reference)
}

// CommissionEarnedNotice tells a referrer about the commission figure computed
// for a client's deposit. The commission is never credited anywhere; this
// message is the entire effect.
func CommissionEarnedNotice(referrer, client string, amount decimal.Decimal, currency string, credited, commission decimal.Decimal, reference string) (subject, body string) {
	return "Client Deposit – Commission Earned!",
		fmt.Sprintf(
			"Hi %s,\n\nYour client %s has successfully deposited %s %s (equivalent to %s USD).\n\n"+
				"You have earned 80%% commission: %s USD.\nThis will be credited to your account soon.\nReference: %s\n\n"+
				"Thank you for growing the TradeRiser community!",
			referrer, client, amount.StringFixed(2), currency,
			credited.StringFixed(2), commission.StringFixed(2), reference)
}

// ReferralSignupNotice tells a marketer someone joined via their link.
func ReferralSignupNotice(referrer, username, email string) (subject, body string) {
	return "New user joined via your Marketor link!",
		fmt.Sprintf("Hello %s,\n\nA new user (%s / %s) has registered using your referral link.\n\nThank you for spreading the word!\nTradeRiser Team",
			referrer, username, email)
}

// VerificationCodeNotice carries an email verification OTP.
func VerificationCodeNotice(code string) (subject, body string) {
	return "Your TradeRiser OTP", fmt.Sprintf("Your verification code is: %s", code)
}

// PasswordResetNotice carries a password reset code.
func PasswordResetNotice(code string) (subject, body string) {
	return "Password Reset Code", fmt.Sprintf("Your 4-digit reset code: %s", code)
}
