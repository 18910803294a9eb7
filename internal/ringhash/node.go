package ringhash

import "strconv"

// Node is an immutable identity value for a physical cluster member.
// Equality is by all three fields, which also makes Node usable as a map
// key without a separate hashing method.
type Node struct {
	ID   string
	Host string
	Port int
}

// Address returns the host:port string used both for virtual-position
// hashing and for dialing the node's internal HTTP endpoint.
func (n Node) Address() string {
	return n.Host + ":" + strconv.Itoa(n.Port)
}
