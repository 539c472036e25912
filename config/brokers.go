package config

import "strings"

// Broker describes a futures broker's market-data and trading fronts.
type Broker struct {
	BrokerID   string
	Name       string
	Aliases    []string
	MdFront    string
	TradeFront string
}

// KnownBrokers lists the brokers that can be selected by name with
// feed.broker_name.
var KnownBrokers = []Broker{
	{
		BrokerID:   "9999",
		Name:       "SimNow",
		Aliases:    []string{"simnow"},
		MdFront:    "tcp://180.168.146.187:10211",
		TradeFront: "tcp://180.168.146.187:10201",
	},
	{
		BrokerID:   "4700",
		Name:       "东海期货",
		Aliases:    []string{"donghai"},
		MdFront:    "tcp://61.132.99.125:41213",
		TradeFront: "tcp://61.132.99.125:41205",
	},
}

// LookupBroker finds a broker by name, alias or broker id.
func LookupBroker(name string) (Broker, bool) {
	name = strings.TrimSpace(name)
	for _, b := range KnownBrokers {
		if strings.EqualFold(b.Name, name) || b.BrokerID == name {
			return b, true
		}
		for _, a := range b.Aliases {
			if strings.EqualFold(a, name) {
				return b, true
			}
		}
	}
	return Broker{}, false
}
