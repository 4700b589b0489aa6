// Package discovery locates the Ollama server when none is configured.
package discovery

import (
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
)

// OllamaPort is the port Ollama listens on by default.
const OllamaPort = "11434"

// RouteTable is the Linux routing table consulted for the default gateway.
var RouteTable = "/proc/net/route"

// DefaultGateway returns the gateway of the default route. Inside WSL or a
// container this is the host, where Ollama usually runs.
func DefaultGateway() (net.IP, bool) {
	f, err := os.Open(RouteTable)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	ip, err := parseDefaultGateway(f)
	if err != nil {
		return nil, false
	}
	return ip, true
}

// OllamaHost returns explicit when set, otherwise the default gateway on
// the Ollama port, otherwise localhost.
func OllamaHost(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if gw, ok := DefaultGateway(); ok {
		return "http://" + net.JoinHostPort(gw.String(), OllamaPort)
	}
	return "http://" + net.JoinHostPort("localhost", OllamaPort)
}

// parseDefaultGateway reads /proc/net/route content. Addresses there are
// hex-encoded in host (little-endian) byte order.
func parseDefaultGateway(r io.Reader) (net.IP, error) {
	sc := bufio.NewScanner(r)
	header := true
	for sc.Scan() {
		if header {
			header = false
			continue
		}
		fields := strings.Fields(sc.Text())
		if len(fields) < 3 {
			continue
		}
		if fields[1] != "00000000" {
			continue
		}
		raw, err := hex.DecodeString(fields[2])
		if err != nil || len(raw) != 4 {
			continue
		}
		v := binary.LittleEndian.Uint32(raw)
		if v == 0 {
			continue
		}
		ip := make(net.IP, 4)
		binary.BigEndian.PutUint32(ip, v)
		return ip, nil
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("no default route")
}
