package server

import (
	"time"

	"github.com/dotside-studios/davi-ndef/buildinfo"
)

// mDNS service discovery constants
var (
	MDNSServiceType = "_ndef-agent._tcp"
	MDNSServiceName = buildinfo.DisplayName
	MDNSDomain      = "local."
)

// CORS configuration
const (
	CORSAllowOrigin  = "*"
	CORSAllowMethods = "GET, POST, OPTIONS"
	CORSAllowHeaders = "Content-Type, Authorization"
)

// DefaultSessionTimeout is how long an idle session token stays valid.
const DefaultSessionTimeout = 30 * time.Minute
