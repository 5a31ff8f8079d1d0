// Package core provides the foundational domain types shared by every Astra
// package: conversation roles and messages.
//
// The package intentionally keeps provider, tool and orchestration concerns
// out of scope so that model adapters, agents and workflows can all depend on
// it without cycles.
package core
