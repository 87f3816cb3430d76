package node

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const segmentSeparator = "|"

// segment — "Entity:id" или "Entity-slot:id", если у родителя несколько слотов для этой сущности.
// Узел без id адресуется позицией в слоте.
func (n *Node) segment() string {
	label := n.entity.Name
	id := n.ID()
	parent, err := n.Parent()
	if err == nil && parent != nil {
		slot, index := parent.slotOf(n)
		if rel, ok := parent.entity.Child(n.entity.Name); ok && rel.Size > 1 && slot >= 0 {
			label = fmt.Sprintf("%s-%d", label, slot)
		}
		if id == "" && index >= 0 {
			id = strconv.Itoa(index)
		}
	}
	if id == "" {
		return label
	}
	return label + ":" + id
}

// GlobalID строит адрес узла относительно ref (включая сегмент ref).
// ref == nil — до корня.
func (n *Node) GlobalID(ref *Node) (string, error) {
	var segments []string
	cur := n
	for {
		segments = append(segments, cur.segment())
		if cur == ref {
			break
		}
		parent, err := cur.Parent()
		if errors.Is(err, ErrParentNotSet) {
			if ref != nil {
				return "", fmt.Errorf("%s is not under %s: %w", n, ref, ErrNotRelated)
			}
			break
		}
		if err != nil {
			return "", err
		}
		if parent == nil {
			if ref != nil {
				return "", fmt.Errorf("%s is not under %s: %w", n, ref, ErrNotRelated)
			}
			break
		}
		cur = parent
	}
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return strings.Join(segments, segmentSeparator), nil
}

type segmentRef struct {
	entity string
	slot   int
	id     string
}

func parseSegment(s string) (segmentRef, error) {
	label, id, _ := strings.Cut(s, ":")
	entity, slot, hasSlot := strings.Cut(label, "-")
	ref := segmentRef{entity: entity, id: id}
	if entity == "" {
		return ref, fmt.Errorf("empty segment %q", s)
	}
	if hasSlot {
		i, err := strconv.Atoi(slot)
		if err != nil || i < 0 {
			return ref, fmt.Errorf("bad slot in segment %q", s)
		}
		ref.slot = i
	}
	return ref, nil
}

// FindNode разрешает адрес, первый сегмент которого обязан описывать сам n.
func (n *Node) FindNode(gid string) (*Node, error) {
	found, err := n.findNode(gid)
	if err != nil {
		return nil, &GlobalIDError{ID: gid, Err: err}
	}
	return found, nil
}

func (n *Node) findNode(gid string) (*Node, error) {
	parts := strings.Split(gid, segmentSeparator)
	first, err := parseSegment(parts[0])
	if err != nil {
		return nil, err
	}
	self, _ := parseSegment(n.segment())
	if first.entity != n.entity.Name || first.id != self.id {
		return nil, fmt.Errorf("first segment %q does not match %s", parts[0], n.segment())
	}
	cur := n
	for _, part := range parts[1:] {
		ref, err := parseSegment(part)
		if err != nil {
			return nil, err
		}
		cur, err = cur.Child(ref.entity, ref.slot, ref.id)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}
