// Package identity determines who this agent reports as: the node name used
// to pick the counter store endpoint, and the hostname sent to the
// controller as the podname.
package identity
