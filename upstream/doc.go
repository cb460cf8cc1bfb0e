// Package upstream resolves per-URN routing and caching policy.
//
// The upstream document lists one entry per namespace. Each entry maps URN
// prefixes to backend URLs, cache TTLs, timeouts and retry counts:
//
//	{"upstreams":[{
//	  "name": "steemd",
//	  "translate_to_appbase": true,
//	  "urls": [["steemd", "wss://${STEEMD_HOST}"]],
//	  "ttls": [["steemd", 3], ["steemd.database_api.get_block", "no_expire_if_irreversible"]],
//	  "timeouts": [["steemd", 5]],
//	  "retries": [["steemd", 1]]
//	}]}
//
// Prefixes match whole "."-delimited segments and the longest match wins.
// The empty prefix is the default for its kind.
package upstream
