/**
 * @description
 * IBAN validation per ISO 13616-1 / ISO 7064. Accounts in this system use
 * the common "CCkkBBBBnnnn..." shape: a two-letter country code, two check
 * digits, a four-letter bank code, then a numeric BBAN. The mod-97 checksum
 * is computed over the rearranged string with letters expanded to 10..35.
 */
package iban

import "strings"

const (
	// MinLen and MaxLen bound an IBAN per ISO 13616-1:2007.
	MinLen = 9
	MaxLen = 34

	bankCodeStart = 4
	bankCodeEnd   = 8
)

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isUpperAlpha(c byte) bool { return c >= 'A' && c <= 'Z' }

// Valid reports whether iban has the expected length, prefix format and a
// correct mod-97 checksum.
func Valid(iban string) bool {
	if len(iban) < MinLen || len(iban) > MaxLen {
		return false
	}
	// Country code and bank code are alphabetic, check digits numeric.
	for i := 0; i < bankCodeEnd; i++ {
		c := iban[i]
		if i == 2 || i == 3 {
			if !isDigit(c) {
				return false
			}
		} else if !isUpperAlpha(c) {
			return false
		}
	}
	for i := bankCodeEnd; i < len(iban); i++ {
		if !isDigit(iban[i]) {
			return false
		}
	}
	return checksum(iban) == 1
}

// BankCode returns the four-letter bank identifier, or "" when iban is too
// short to carry one.
func BankCode(iban string) string {
	if len(iban) < bankCodeEnd {
		return ""
	}
	return iban[bankCodeStart:bankCodeEnd]
}

// CountryCode returns the two-letter country prefix, or "" when absent.
func CountryCode(iban string) string {
	if len(iban) < 2 {
		return ""
	}
	return iban[:2]
}

// checksum computes the ISO 7064 mod-97 remainder over the IBAN with its
// first four characters moved to the end. A valid IBAN yields 1.
func checksum(iban string) int {
	rearranged := iban[4:] + iban[:4]
	rem := 0
	for i := 0; i < len(rearranged); i++ {
		c := rearranged[i]
		switch {
		case isDigit(c):
			rem = (rem*10 + int(c-'0')) % 97
		case isUpperAlpha(c):
			n := int(c-'A') + 10
			rem = (rem*100 + n) % 97
		default:
			return 0
		}
	}
	return rem
}

// CheckDigits computes the two check digits that make the given IBAN body
// valid, for provisioning tooling. body must have "00" in positions 2..4.
func CheckDigits(body string) int {
	if len(body) < 4 {
		return 0
	}
	return 98 - checksum(body[:2]+"00"+body[4:])%97
}

// Normalize upper-cases and strips spaces so kiosk input compares cleanly
// against stored IBANs.
func Normalize(iban string) string {
	return strings.ToUpper(strings.ReplaceAll(iban, " ", ""))
}
