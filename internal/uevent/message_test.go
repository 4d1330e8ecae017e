package uevent

import (
	"errors"
	"testing"
)

// datagram joins fields with NULs the way the kernel lays them out.
func datagram(fields ...string) []byte {
	var b []byte
	for i, f := range fields {
		if i > 0 {
			b = append(b, 0)
		}
		b = append(b, f...)
	}
	return b
}

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		wantAction  string
		wantDevpath string
		wantEnv     map[string]string
		wantErr     bool
	}{
		{
			name: "block add",
			data: datagram(
				"add@/devices/pci0000:00/0000:00:14.0/usb1/1-2/1-2:1.0/host6/target6:0:0/6:0:0:0/block/sdb",
				"ACTION=add",
				"DEVPATH=/devices/pci0000:00/0000:00:14.0/usb1/1-2/1-2:1.0/host6/target6:0:0/6:0:0:0/block/sdb",
				"SUBSYSTEM=block",
				"DEVNAME=sdb",
				"DEVTYPE=disk",
				"SEQNUM=4711",
			),
			wantAction:  "add",
			wantDevpath: "/devices/pci0000:00/0000:00:14.0/usb1/1-2/1-2:1.0/host6/target6:0:0/6:0:0:0/block/sdb",
			wantEnv: map[string]string{
				"ACTION":    "add",
				"SUBSYSTEM": "block",
				"DEVNAME":   "sdb",
				"DEVTYPE":   "disk",
				"SEQNUM":    "4711",
			},
		},
		{
			name: "remove with trailing NUL",
			data: append(datagram(
				"remove@/devices/virtual/net/dummy0",
				"ACTION=remove",
				"SUBSYSTEM=net",
			), 0),
			wantAction:  "remove",
			wantDevpath: "/devices/virtual/net/dummy0",
			wantEnv: map[string]string{
				"ACTION":    "remove",
				"SUBSYSTEM": "net",
			},
		},
		{
			name:    "daemon datagram rejected",
			data:    append([]byte("libudev\x00"), 0xfe, 0xed, 0xca, 0xfe),
			wantErr: true,
		},
		{
			name:    "missing at sign",
			data:    datagram("ACTION=add", "SUBSYSTEM=block"),
			wantErr: true,
		},
		{
			name:    "empty devpath",
			data:    datagram("add@"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Parse(tt.data)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse() = %+v, want error", msg)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if msg.Action != tt.wantAction {
				t.Errorf("Action = %q, want %q", msg.Action, tt.wantAction)
			}
			if msg.Devpath != tt.wantDevpath {
				t.Errorf("Devpath = %q, want %q", msg.Devpath, tt.wantDevpath)
			}
			for k, want := range tt.wantEnv {
				if got := msg.Env[k]; got != want {
					t.Errorf("Env[%q] = %q, want %q", k, got, want)
				}
			}
		})
	}
}

func TestParseDaemonMessageSentinel(t *testing.T) {
	_, err := Parse(append([]byte("libudev\x00"), 1, 2, 3))
	if !errors.Is(err, ErrDaemonMessage) {
		t.Fatalf("Parse() error = %v, want ErrDaemonMessage", err)
	}
}

func TestMessageAccessors(t *testing.T) {
	msg, err := Parse(datagram(
		"change@/devices/platform/thermal",
		"SUBSYSTEM=thermal",
		"DEVTYPE=thermal_zone",
	))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := msg.Subsystem(); got != "thermal" {
		t.Errorf("Subsystem() = %q, want %q", got, "thermal")
	}
	if got := msg.Devtype(); got != "thermal_zone" {
		t.Errorf("Devtype() = %q, want %q", got, "thermal_zone")
	}
}
