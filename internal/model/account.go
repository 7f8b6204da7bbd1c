package model

// CustodyAccount is a brokerage account holding securities.
type CustodyAccount struct {
	Broker    string
	AccountID string
	Country   string // custody country, ISO 3166-1 alpha-2
	Currency  string // account base currency
}

// AccountKey is the identity of a custody account.
type AccountKey struct {
	Broker    string
	AccountID string
}

// Key returns the account's identity key.
func (a CustodyAccount) Key() AccountKey {
	return AccountKey{Broker: a.Broker, AccountID: a.AccountID}
}

func (k AccountKey) String() string { return k.Broker + "/" + k.AccountID }

// Less orders keys by broker, then account id.
func (k AccountKey) Less(o AccountKey) bool {
	if k.Broker != o.Broker {
		return k.Broker < o.Broker
	}
	return k.AccountID < o.AccountID
}
