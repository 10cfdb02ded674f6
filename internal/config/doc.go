// Package config handles HCL configuration for policyctl and HCL rule files.
//
// # Overview
//
// The tool reads one HCL (or JSON) file describing how to reach the
// networking API, where to keep the local rule store and how to log:
//
//	log_level = "info"
//
//	api {
//	    endpoint = "https://neutron.example:9696"
//	    token    = "gAAAAAB..."
//	    timeout  = "30s"
//	}
//
//	store {
//	    backend = "api"    # api | sqlite | memory
//	}
//
// POLICYCTL_ENDPOINT and POLICYCTL_TOKEN override the api block.
//
// # Rule Files
//
// Rule collections can be exported to and applied from HCL:
//
//	owner {
//	    kind = "router"
//	    id   = "8f1c2a4e-6d1b-4a51-9d3e-2c7b9f0e1a22"
//	}
//
//	rule {
//	    priority    = 100
//	    source      = "10.0.0.0/24"
//	    destination = "any"
//	    action      = "permit"
//	    nexthops    = ["10.0.0.1", "10.0.0.2"]
//	}
//
// See [LoadRuleFile] and [WriteRuleFile].
package config
