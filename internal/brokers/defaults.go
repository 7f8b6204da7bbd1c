package brokers

// Default returns the built-in broker table: one entry per supported
// report format.
func Default() []Broker {
	return []Broker{
		{Format: "degiro", Name: "Degiro", Country: "NL"},
		{Format: "ibkr", Name: "Interactive Brokers", Country: "IE"},
	}
}
