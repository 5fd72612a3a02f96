package snvindex

import (
	"encoding/json"
	"math"
)

// schemaVersion is stamped onto every record written through
// PersistencePort, per spec.md §6.3 ("self-describing records including
// a schema version").
const schemaVersion = 1

type sequenceRecord struct {
	SchemaVersion int             `json:"schema_version"`
	Guid          string          `json:"guid"`
	APos          PositionSet     `json:"a_pos"`
	CPos          PositionSet     `json:"c_pos"`
	GPos          PositionSet     `json:"g_pos"`
	TPos          PositionSet     `json:"t_pos"`
	NPos          PositionSet     `json:"n_pos"`
	MPos          map[int]BaseFrequencies `json:"m_pos,omitempty"`
	Invalid       bool            `json:"invalid"`
	Quality       float64         `json:"quality"`
	Meta          map[string]any  `json:"meta,omitempty"`
	LocalRef      string          `json:"local_ref,omitempty"`
}

func encodeSequenceRecord(cs *CompressedSequence) ([]byte, error) {
	rec := sequenceRecord{
		SchemaVersion: schemaVersion,
		Guid:          cs.Guid,
		APos:          cs.APos,
		CPos:          cs.CPos,
		GPos:          cs.GPos,
		TPos:          cs.TPos,
		NPos:          cs.NPos,
		MPos:          cs.MPos,
		Invalid:       cs.Invalid,
		Quality:       cs.Quality,
		Meta:          cs.Meta,
		LocalRef:      cs.LocalRef,
	}
	return json.Marshal(rec)
}

func decodeSequenceRecord(data []byte) (*CompressedSequence, error) {
	var rec sequenceRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &CompressedSequence{
		Guid:     rec.Guid,
		APos:     rec.APos,
		CPos:     rec.CPos,
		GPos:     rec.GPos,
		TPos:     rec.TPos,
		NPos:     rec.NPos,
		MPos:     rec.MPos,
		Invalid:  rec.Invalid,
		Quality:  rec.Quality,
		Meta:     rec.Meta,
		LocalRef: rec.LocalRef,
	}, nil
}

type edgeRecord struct {
	SchemaVersion int     `json:"schema_version"`
	G1            string  `json:"g1"`
	G2            string  `json:"g2"`
	SNV           int     `json:"snv"`
	MixtureP      float64 `json:"mixture_p"`
	HasMixtureP   bool    `json:"has_mixture_p"`
}

func encodeEdgeRecord(e Edge) ([]byte, error) {
	hasMixtureP := !math.IsNaN(e.MixtureP)
	mixtureP := e.MixtureP
	if !hasMixtureP {
		// encoding/json cannot marshal NaN; HasMixtureP is the
		// authoritative flag and this field is ignored on decode.
		mixtureP = 0
	}
	rec := edgeRecord{
		SchemaVersion: schemaVersion,
		G1:            e.G1,
		G2:            e.G2,
		SNV:           e.SNV,
		MixtureP:      mixtureP,
		HasMixtureP:   hasMixtureP,
	}
	return json.Marshal(rec)
}

func decodeEdgeRecord(data []byte) (Edge, error) {
	var rec edgeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Edge{}, err
	}
	e := Edge{G1: rec.G1, G2: rec.G2, SNV: rec.SNV, MixtureP: math.NaN()}
	if rec.HasMixtureP {
		e.MixtureP = rec.MixtureP
	}
	return e, nil
}

type metaRecord struct {
	SchemaVersion int            `json:"schema_version"`
	Meta          map[string]any `json:"meta,omitempty"`
}

func encodeMetaRecord(meta map[string]any) ([]byte, error) {
	return json.Marshal(metaRecord{SchemaVersion: schemaVersion, Meta: meta})
}

func decodeMetaRecord(data []byte) (map[string]any, error) {
	var rec metaRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return rec.Meta, nil
}

type clusterMemberRecord struct {
	ClusterID  int  `json:"cluster_id"`
	Mixed      bool `json:"mixed"`
	LastChange int  `json:"last_change"`
}

type clusterSnapshotRecord struct {
	SchemaVersion int                            `json:"schema_version"`
	ChangeID      int                            `json:"change_id"`
	NextGuidID    int                            `json:"next_guid_id"`
	Members       map[string]clusterMemberRecord `json:"members"`
}

func encodeClusterSnapshot(snap ClusterSnapshot) ([]byte, error) {
	members := make(map[string]clusterMemberRecord, len(snap.Members))
	for g, m := range snap.Members {
		members[g] = clusterMemberRecord{ClusterID: m.ClusterID, Mixed: m.Mixed, LastChange: m.LastChange}
	}
	rec := clusterSnapshotRecord{
		SchemaVersion: schemaVersion,
		ChangeID:      snap.ChangeID,
		NextGuidID:    snap.NextGuidID,
		Members:       members,
	}
	return json.Marshal(rec)
}

func decodeClusterSnapshot(data []byte) (ClusterSnapshot, error) {
	var rec clusterSnapshotRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return ClusterSnapshot{}, err
	}
	members := make(map[string]ClusterMember, len(rec.Members))
	for g, m := range rec.Members {
		members[g] = ClusterMember{ClusterID: m.ClusterID, Mixed: m.Mixed, LastChange: m.LastChange}
	}
	return ClusterSnapshot{ChangeID: rec.ChangeID, NextGuidID: rec.NextGuidID, Members: members}, nil
}
