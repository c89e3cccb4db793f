package web

import _ "embed"

//go:embed assets/index.html
var indexHTML []byte

//go:embed assets/joy.js
var joyJS []byte
