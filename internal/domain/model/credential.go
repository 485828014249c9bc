package model

import "time"

// NetworkCredentials is the wireless network credential record: a network
// name and its secret. It is created by the operator (credentials file or
// dashboard) and only ever read by the daemon.
type NetworkCredentials struct {
	SSID       string
	Passphrase string
}

// IsZero reports whether no credentials are configured.
func (c NetworkCredentials) IsZero() bool {
	return c.SSID == "" && c.Passphrase == ""
}

// Credential is one encrypted secret stored in the database, keyed by
// service name (e.g. "wifi.ssid", "wifi.passphrase").
type Credential struct {
	ID        int64
	Service   string
	Value     string
	UpdatedAt time.Time
}

// Credential service keys used by the daemon.
const (
	CredentialWifiSSID       = "wifi.ssid"
	CredentialWifiPassphrase = "wifi.passphrase"
)
