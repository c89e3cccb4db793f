package cvsource

import "testing"

func TestDeviceID(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"0", 0},
		{"2", 2},
		{"/dev/video1", "/dev/video1"},
		{"rtsp://cam.local/stream", "rtsp://cam.local/stream"},
	}
	for _, tt := range tests {
		if got := deviceID(tt.in); got != tt.want {
			t.Errorf("deviceID(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
