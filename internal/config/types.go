// Package config holds the wire-protocol data model (spec §3, §6) and the
// on-disk process-hardening configuration (SPEC_FULL.md §4).
package config

import "encoding/json"

// CapabilitySet is drawn from the closed vocabulary {fs, network}. Absent
// entries deny the corresponding primitive class; there is no wildcard.
type CapabilitySet []string

// Has reports whether name is present in the set.
func (c CapabilitySet) Has(name string) bool {
	for _, v := range c {
		if v == name {
			return true
		}
	}
	return false
}

// UnmarshalJSON degrades a non-array "capabilities" value to an empty set
// instead of failing the whole start payload, matching spec §4.6 step 5
// (the original's "if not isinstance(capabilities, list): capabilities =
// []"). Array elements that aren't strings are dropped individually rather
// than rejecting the whole list.
func (c *CapabilitySet) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		*c = nil
		return nil
	}

	out := make(CapabilitySet, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
		}
	}
	*c = out
	return nil
}

// ManifestSection is the wire-protocol "manifest" object nested in a bundle
// descriptor.
type ManifestSection struct {
	Capabilities CapabilitySet `json:"capabilities,omitempty"`
}

// BundleDescriptor is the wire-protocol bundle descriptor (spec §3).
type BundleDescriptor struct {
	Directory  string           `json:"directory"`
	EntryFile  string           `json:"entryFile"`
	ExportName string           `json:"exportName,omitempty"`
	Manifest   *ManifestSection `json:"manifest,omitempty"`
}

// Capabilities returns the declared capability set, treating an absent
// manifest the same way CapabilitySet.UnmarshalJSON treats a non-array
// value: empty.
func (b BundleDescriptor) Capabilities() CapabilitySet {
	if b.Manifest == nil {
		return nil
	}
	return b.Manifest.Capabilities
}

// JobPayload is opaque to the core; it is handed to the Job Context verbatim
// (spec §3).
type JobPayload struct {
	Definition json.RawMessage `json:"definition,omitempty"`
	Run        json.RawMessage `json:"run,omitempty"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// StartPayload is the payload of a parent -> child "start" message (spec §6).
type StartPayload struct {
	TaskID               string           `json:"taskId,omitempty"`
	Bundle               BundleDescriptor `json:"bundle"`
	Job                  JobPayload       `json:"job"`
	WorkflowEventContext json.RawMessage  `json:"workflowEventContext,omitempty"`
}
