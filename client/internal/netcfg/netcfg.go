package netcfg

import (
	"os"
	"strconv"
	"time"
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil && n > 0 {
		return n
	}
	return def
}

func getenvDuration(k string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(k)); err == nil && d > 0 {
		return d
	}
	return def
}

var APIBase = getenv("NAAGA_API_BASE", "http://127.0.0.1:8080")        // REST
var StreamURL = getenv("NAAGA_WS_URL", "ws://127.0.0.1:8080/ranks/ws") // WebSocket
var Token = getenv("NAAGA_TOKEN", "")                                  // overrides the saved session token
var Timeout = getenvDuration("NAAGA_TIMEOUT", 10*time.Second)          // per request, incl. body read
var DispatchWorkers = getenvInt("NAAGA_DISPATCH_WORKERS", 8)           // Enqueue pool size
var Profile = getenv("NAAGA_PROFILE", "default")                       // session dir name
