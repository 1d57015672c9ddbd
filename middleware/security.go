package middleware

import (
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
)

// SecurityHeaders sets the usual hardening response headers. HSTS is only
// sent in release mode so local HTTP development keeps working.
func SecurityHeaders(release bool) gin.HandlerFunc {
	config := secure.Config{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		IENoOpen:              true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
	}
	if release {
		config.STSSeconds = 15552000
		config.STSIncludeSubdomains = true
	}
	return secure.New(config)
}
