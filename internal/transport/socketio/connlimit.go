package socketio

import (
	"net"
	"sync"
)

// ConnectionLimiter caps concurrent collage sessions per remote IP.
// When an IP exceeds the cap, its oldest connection is evicted.
// Loopback connections are never limited.
type ConnectionLimiter struct {
	mu    sync.Mutex
	maxIP int
	// clientID -> remote IP
	connections map[string]string
	// remote IP -> client IDs, oldest first
	byIP map[string][]string
}

// NewConnectionLimiter creates a limiter allowing maxPerIP sessions per address.
// maxPerIP <= 0 disables the limit.
func NewConnectionLimiter(maxPerIP int) *ConnectionLimiter {
	return &ConnectionLimiter{
		maxIP:       maxPerIP,
		connections: make(map[string]string),
		byIP:        make(map[string][]string),
	}
}

// Add registers a connection and returns the ID of the evicted client, or "".
func (cl *ConnectionLimiter) Add(clientID, remoteAddr string) (evictedID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.connections[clientID]; exists {
		return ""
	}

	ip := hostOf(remoteAddr)
	cl.connections[clientID] = ip
	if isLoopback(ip) {
		return ""
	}

	ids := append(cl.byIP[ip], clientID)
	if cl.maxIP > 0 && len(ids) > cl.maxIP {
		evictedID = ids[0]
		ids = ids[1:]
		delete(cl.connections, evictedID)
	}
	cl.byIP[ip] = ids
	return evictedID
}

// Remove unregisters a connection.
func (cl *ConnectionLimiter) Remove(clientID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	ip, exists := cl.connections[clientID]
	if !exists {
		return
	}
	delete(cl.connections, clientID)

	ids := cl.byIP[ip]
	for i, id := range ids {
		if id == clientID {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(cl.byIP, ip)
	} else {
		cl.byIP[ip] = ids
	}
}

// Count returns the number of tracked connections.
func (cl *ConnectionLimiter) Count() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.connections)
}

// hostOf strips the port from addr if it has one.
func hostOf(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func isLoopback(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.IsLoopback()
}
