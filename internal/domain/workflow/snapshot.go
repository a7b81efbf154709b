package workflow

// Snapshot is a read-only view of an instance's accumulated data,
// merged with the input of the transition being evaluated. Guards
// and validators read from it; they never write.
type Snapshot map[string]interface{}

// Merged returns a new snapshot with the input laid over the base.
// Neither argument is modified.
func Merged(base map[string]interface{}, input map[string]interface{}) Snapshot {
	merged := make(Snapshot, len(base)+len(input))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range input {
		merged[k] = v
	}
	return merged
}

// GetString retrieves a string value from the snapshot.
func (s Snapshot) GetString(key string) string {
	if val, ok := s[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetInt retrieves an int64 value from the snapshot.
func (s Snapshot) GetInt(key string) int64 {
	if val, ok := s[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}

// GetFloat retrieves a float64 value from the snapshot.
func (s Snapshot) GetFloat(key string) float64 {
	if val, ok := s[key]; ok {
		switch v := val.(type) {
		case float64:
			return v
		case int64:
			return float64(v)
		case int:
			return float64(v)
		}
	}
	return 0.0
}

// GetBool retrieves a bool value from the snapshot.
func (s Snapshot) GetBool(key string) bool {
	if val, ok := s[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return false
}

// GetStringSlice retrieves a slice of strings from the snapshot.
// JSON round-trips store slices as []interface{}, so both forms are accepted.
func (s Snapshot) GetStringSlice(key string) []string {
	val, ok := s[key]
	if !ok {
		return nil
	}
	switch v := val.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}
