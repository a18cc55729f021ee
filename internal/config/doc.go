// Package config holds deepcrawl's settings and their three layers:
// compiled defaults (NewConfig), the YAML configuration file
// (LoadConfigFile, FindConfigFile) and CLI flags applied by the command.
//
// The file mirrors the Config sections (crawl, rate_limit, proxies,
// dispatcher, scoring) and adds per-site overrides that are merged over a
// defaults block:
//
//	crawl:
//	  strategy: best-first
//	  max_depth: 4
//	rate_limit:
//	  policy: adaptive
//	  requests_per_second: 3
//	sites:
//	  docs.example.com:
//	    max_depth: 6
//	    headers:
//	      Accept-Language: ja
package config
