// Package config provides environment helpers for go-gaze commands.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Default endpoints.
const (
	DefaultHeadPort  = "8000"
	DefaultScenePort = "9000"
	DefaultWebPort   = 8181
)

// Environment variable names.
const (
	EnvHeadAddr = "GAZE_HEAD_ADDR"
	EnvCamera   = "GAZE_CAMERA"
	EnvSceneURL = "GAZE_SCENE_URL"
	EnvPort     = "GAZE_PORT"
)

// HeadAddr returns the head controller address from GAZE_HEAD_ADDR.
// Falls back to the provided default if not set.
func HeadAddr(defaultAddr string) string {
	if addr := os.Getenv(EnvHeadAddr); addr != "" {
		return addr
	}
	return defaultAddr
}

// HeadAPIURL returns the control-board HTTP API URL for a host or host:port.
func HeadAPIURL(host string) string {
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return strings.TrimRight(host, "/")
	}
	if strings.Contains(host, ":") {
		return "http://" + host
	}
	return fmt.Sprintf("http://%s:%s", host, DefaultHeadPort)
}

// SerialPath extracts the device path from a "serial:/dev/ttyX" address.
// ok is false for any other address form.
func SerialPath(addr string) (path string, ok bool) {
	const prefix = "serial:"
	if !strings.HasPrefix(addr, prefix) {
		return "", false
	}
	path = strings.TrimPrefix(addr, prefix)
	return path, path != ""
}

// Camera returns the camera source from GAZE_CAMERA or the default.
// A source is a device index ("0"), a file/URL, or "webrtc://host".
func Camera(defaultSpec string) string {
	if src := os.Getenv(EnvCamera); src != "" {
		return src
	}
	return defaultSpec
}

// SceneURL returns the scene websocket URL from GAZE_SCENE_URL or the default.
func SceneURL(defaultURL string) string {
	if u := os.Getenv(EnvSceneURL); u != "" {
		return u
	}
	return defaultURL
}

// Port returns the dashboard port from GAZE_PORT.
// Invalid values fall back to the default.
func Port(defaultPort int) int {
	v := os.Getenv(EnvPort)
	if v == "" {
		return defaultPort
	}
	p, err := strconv.Atoi(v)
	if err != nil || p <= 0 || p > 65535 {
		return defaultPort
	}
	return p
}
