package blobstore

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ItemIDField names the id property of collection items.
const ItemIDField = "id"

func toItems(value interface{}) ([]map[string]interface{}, error) {
	b, err := marshal(value)
	if err != nil {
		return nil, err
	}
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var items []map[string]interface{}
		if err := json.Unmarshal(b, &items); err != nil {
			return nil, fmt.Errorf("collection items must be objects: %v", err)
		}
		return items, nil
	}
	var item map[string]interface{}
	if err := json.Unmarshal(b, &item); err != nil {
		return nil, fmt.Errorf("collection items must be objects: %v", err)
	}
	return []map[string]interface{}{item}, nil
}

func marshal(value interface{}) (json.RawMessage, error) {
	switch v := value.(type) {
	case json.RawMessage:
		return v, nil
	case []byte:
		return v, nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %v", err)
	}
	return b, nil
}

func itemID(item map[string]interface{}) string {
	id, _ := item[ItemIDField].(string)
	return id
}

func decodeCollection(stored json.RawMessage) ([]map[string]interface{}, error) {
	if len(stored) == 0 {
		return nil, nil
	}
	return toItems(stored)
}

// AddItems appends value to the stored collection. Items without an id are
// given one from newID. A stored single object becomes the first item.
func AddItems(stored json.RawMessage, value interface{}, newID func() string) (json.RawMessage, []json.RawMessage, error) {
	existing, err := decodeCollection(stored)
	if err != nil {
		return nil, nil, err
	}
	items, err := toItems(value)
	if err != nil {
		return nil, nil, err
	}

	added := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		if item == nil {
			item = map[string]interface{}{}
		}
		if itemID(item) == "" {
			item[ItemIDField] = newID()
		}
		b, err := json.Marshal(item)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal item: %v", err)
		}
		added = append(added, b)
		existing = append(existing, item)
	}

	updated, err := json.Marshal(existing)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal collection: %v", err)
	}
	return updated, added, nil
}

func isCollection(stored json.RawMessage) bool {
	b := bytes.TrimSpace(stored)
	return len(b) > 0 && b[0] == '['
}

// UpdateItem replaces the collection item sharing value's id. If stored is
// not a collection, value replaces it outright.
func UpdateItem(key string, stored json.RawMessage, value interface{}) (json.RawMessage, json.RawMessage, error) {
	b, err := marshal(value)
	if err != nil {
		return nil, nil, err
	}
	if !isCollection(stored) {
		return b, b, nil
	}

	items, err := decodeCollection(stored)
	if err != nil {
		return nil, nil, err
	}
	updates, err := toItems(b)
	if err != nil {
		return nil, nil, err
	}
	if len(updates) != 1 || itemID(updates[0]) == "" {
		return nil, nil, fmt.Errorf("collection update needs a single item with an id")
	}
	id := itemID(updates[0])

	found := false
	for i, item := range items {
		if itemID(item) == id {
			items[i] = updates[0]
			found = true
			break
		}
	}
	if !found {
		return nil, nil, &ErrNotFound{Key: key + "/" + id}
	}

	updated, err := json.Marshal(items)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal collection: %v", err)
	}
	item, err := json.Marshal(updates[0])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal item: %v", err)
	}
	return updated, item, nil
}

// DeleteItem removes the item with id from the stored collection.
func DeleteItem(key string, stored json.RawMessage, id string) (json.RawMessage, error) {
	if !isCollection(stored) {
		return nil, &ErrNotFound{Key: key + "/" + id}
	}
	items, err := decodeCollection(stored)
	if err != nil {
		return nil, err
	}
	kept := items[:0]
	found := false
	for _, item := range items {
		if itemID(item) == id {
			found = true
			continue
		}
		kept = append(kept, item)
	}
	if !found {
		return nil, &ErrNotFound{Key: key + "/" + id}
	}
	updated, err := json.Marshal(kept)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal collection: %v", err)
	}
	return updated, nil
}
