package alert

// NodeType distinguishes files from folders in node-level events.
type NodeType int

const (
	NodeFile   NodeType = 0
	NodeFolder NodeType = 1
)

// Node is the minimal view of a cloud-drive node the engine needs: its own
// handle, its parent folder, and whether it is a file or folder. The full
// node model lives with the host client.
type Node struct {
	Handle Handle
	Parent Handle
	Type   NodeType
}
