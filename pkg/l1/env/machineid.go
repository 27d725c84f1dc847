// Package env provides the process environment shared by gateways and
// consumers: identity and configuration files.
package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// AppID scopes the machine id hash.
const AppID = "katwalk"

// machineIDLen keeps ids readable in MQTT topics.
const machineIDLen = 12

// MachineID retrieves a stable ID identifying the machine. The raw
// machine id is hashed with AppID so it's not exposed.
func MachineID() string {
	id, err := machineid.ProtectedID(AppID)
	if err != nil {
		glog.Warningf("machine id unavailable, using hostname: %v", err)
		if id, err = os.Hostname(); err != nil {
			return "unknown"
		}
		return id
	}
	if len(id) > machineIDLen {
		id = id[:machineIDLen]
	}
	return id
}
