// Package urn canonicalizes JSON-RPC requests into URNs.
//
// A URN identifies what a request asks for independently of how it was
// spelled: the three method conventions accepted by the relay (appbase
// "x_api.method", namespaced "ns.api.method" and the legacy "call" form)
// collapse onto one string, and params are serialized with sorted keys.
// URNs are both the routing key for policy lookups and the cache key.
//
//	p := urn.NewParser("hivemind")
//	u, err := p.Parse(req)
//	// u.String() == "steemd.database_api.get_block.params=[1000]"
package urn
