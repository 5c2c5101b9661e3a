package sequencer

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/tiago-py/bravo-health-flow-sub000/internal/errors"
	"github.com/tiago-py/bravo-health-flow-sub000/internal/structs"
)

// The sequencer owns the ordering invariants of a flow's block list.
// Every operation is pure: it returns a fresh slice and leaves its
// input untouched, so a failed operation cannot leave a flow half
// edited. The array index is the single source of truth for sequence;
// successors are derived, never stored.

// Insert adds a block to the list, at the end when afterID is empty or
// immediately after the referenced block otherwise.
func Insert(blocks []structs.Block, block structs.Block, afterID string) ([]structs.Block, error) {
	if block.ID == "" {
		return nil, errors.NewValidationError("id", "block id is required")
	}
	if indexOf(blocks, block.ID) >= 0 {
		return nil, errors.WrapFlowError(errors.ErrDuplicateBlockID, "", block.ID)
	}

	if afterID == "" {
		out := make([]structs.Block, 0, len(blocks)+1)
		out = append(out, blocks...)
		return append(out, block), nil
	}

	at := indexOf(blocks, afterID)
	if at < 0 {
		return nil, errors.WrapFlowError(errors.ErrBlockNotFound, "", afterID)
	}

	out := make([]structs.Block, 0, len(blocks)+1)
	out = append(out, blocks[:at+1]...)
	out = append(out, block)
	out = append(out, blocks[at+1:]...)
	return out, nil
}

// Remove drops the block with the given id. Compaction of the array
// keeps the derived successor chain intact: the predecessor's next
// becomes the removed block's former successor.
func Remove(blocks []structs.Block, id string) ([]structs.Block, error) {
	at := indexOf(blocks, id)
	if at < 0 {
		return nil, errors.WrapFlowError(errors.ErrBlockNotFound, "", id)
	}

	out := make([]structs.Block, 0, len(blocks)-1)
	out = append(out, blocks[:at]...)
	out = append(out, blocks[at+1:]...)
	return out, nil
}

// Reorder moves exactly one block to targetIndex, preserving every
// other block's relative order. Splice-and-insert, not swap.
func Reorder(blocks []structs.Block, id string, targetIndex int) ([]structs.Block, error) {
	at := indexOf(blocks, id)
	if at < 0 {
		return nil, errors.WrapFlowError(errors.ErrBlockNotFound, "", id)
	}
	if targetIndex < 0 || targetIndex >= len(blocks) {
		return nil, errors.NewValidationError("targetIndex", fmt.Sprintf("index %d out of range [0,%d)", targetIndex, len(blocks)))
	}

	moved := blocks[at]
	out := make([]structs.Block, 0, len(blocks))
	out = append(out, blocks[:at]...)
	out = append(out, blocks[at+1:]...)

	tail := make([]structs.Block, len(out[targetIndex:]))
	copy(tail, out[targetIndex:])
	out = append(out[:targetIndex], moved)
	out = append(out, tail...)
	return out, nil
}

// Duplicate deep-copies the block with the given id, assigns the copy a
// fresh id, and inserts it immediately after its source. Checkout
// blocks refuse duplication; a flow has one checkout terminal.
func Duplicate(blocks []structs.Block, id string) ([]structs.Block, structs.Block, error) {
	at := indexOf(blocks, id)
	if at < 0 {
		return nil, structs.Block{}, errors.WrapFlowError(errors.ErrBlockNotFound, "", id)
	}
	if blocks[at].Type == structs.BlockCheckout {
		return nil, structs.Block{}, errors.WrapFlowError(errors.ErrCheckoutDuplicate, "", id)
	}

	dup, err := deepCopy(blocks[at])
	if err != nil {
		return nil, structs.Block{}, err
	}
	dup.ID = uuid.NewString()

	out, err := Insert(blocks, dup, id)
	if err != nil {
		return nil, structs.Block{}, err
	}
	return out, dup, nil
}

// NextID returns the derived successor of a block, or empty when it is
// last.
func NextID(blocks []structs.Block, id string) (string, error) {
	at := indexOf(blocks, id)
	if at < 0 {
		return "", errors.WrapFlowError(errors.ErrBlockNotFound, "", id)
	}
	if at+1 >= len(blocks) {
		return "", nil
	}
	return blocks[at+1].ID, nil
}

// Validate checks block id uniqueness across the list, including group
// children.
func Validate(blocks []structs.Block) error {
	seen := make(map[string]bool)
	var walk func(list []structs.Block) error
	walk = func(list []structs.Block) error {
		for _, b := range list {
			if b.ID == "" {
				return errors.NewValidationError("id", "block id is required")
			}
			if seen[b.ID] {
				return errors.WrapFlowError(errors.ErrDuplicateBlockID, "", b.ID)
			}
			seen[b.ID] = true
			if b.Type == structs.BlockGroup && b.Group != nil {
				if err := walk(b.Group.Blocks); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return walk(blocks)
}

func indexOf(blocks []structs.Block, id string) int {
	for i, b := range blocks {
		if b.ID == id {
			return i
		}
	}
	return -1
}

// deepCopy round-trips the block through its JSON codec so variant
// payloads are copied by value, not by pointer.
func deepCopy(b structs.Block) (structs.Block, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return structs.Block{}, err
	}
	var out structs.Block
	if err := json.Unmarshal(data, &out); err != nil {
		return structs.Block{}, err
	}
	return out, nil
}
