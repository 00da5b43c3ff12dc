package coophub

import "strings"

// Defaults reported when no preference has been stored.
const (
	DefaultLocale   = "en"
	DefaultCurrency = "USD"
)

// Locale returns the stored UI locale, or DefaultLocale.
func (c *Client) Locale() string {
	if l := c.session.Locale(); l != "" {
		return l
	}
	return DefaultLocale
}

// SetLocale stores a BCP 47 locale such as "en" or "fr-CI".
func (c *Client) SetLocale(locale string) error {
	locale = strings.TrimSpace(locale)
	if err := c.validate.Var("locale", locale, "required,bcp47_language_tag"); err != nil {
		return err
	}
	return c.session.SetLocale(locale)
}

// Currency returns the stored display currency, or DefaultCurrency.
func (c *Client) Currency() string {
	if cur := c.session.Currency(); cur != "" {
		return cur
	}
	return DefaultCurrency
}

// SetCurrency stores an ISO 4217 currency code. Case is normalized.
func (c *Client) SetCurrency(code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if err := c.validate.Var("currency", code, "required,iso4217"); err != nil {
		return err
	}
	return c.session.SetCurrency(code)
}
