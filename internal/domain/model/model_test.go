package model_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/okian/scorebridge/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSnapshotEntries(t *testing.T) {
	Convey("Given leaderboard snapshots", t, func() {
		Convey("When the snapshot is nil", func() {
			var snap model.Snapshot
			entries := snap.Entries()

			Convey("Then it flattens to a non-nil empty slice", func() {
				So(entries, ShouldNotBeNil)
				So(entries, ShouldBeEmpty)
				raw, err := json.Marshal(entries)
				So(err, ShouldBeNil)
				So(string(raw), ShouldEqual, "[]")
			})
		})

		Convey("When the snapshot has entries inserted out of order", func() {
			snap := model.Snapshot{
				"k2": {"name": "Bob", "score": 7.0},
				"k1": {"name": "Ann", "score": 10.0},
			}
			entries := snap.Entries()

			Convey("Then every entry appears once ordered by key", func() {
				So(entries, ShouldHaveLength, 2)
				So(entries[0].Key, ShouldEqual, model.Key("k1"))
				So(entries[0].Entry["name"], ShouldEqual, "Ann")
				So(entries[1].Key, ShouldEqual, model.Key("k2"))
			})
		})

		Convey("When cloning a snapshot", func() {
			snap := model.Snapshot{"k1": {"score": 1.0}}
			clone := snap.Clone()
			clone["k1"]["score"] = 2.0

			Convey("Then the original entry is untouched", func() {
				So(snap["k1"]["score"], ShouldEqual, 1.0)
			})
		})
	})
}

func TestScoreEntryMerge(t *testing.T) {
	Convey("Given an existing entry", t, func() {
		existing := model.ScoreEntry{"name": "Ann", "score": 10.0}

		Convey("When merging a partial record", func() {
			merged := existing.Merge(model.ScoreEntry{"score": 12.0})

			Convey("Then only the present fields change", func() {
				So(merged["name"], ShouldEqual, "Ann")
				So(merged["score"], ShouldEqual, 12.0)
				So(existing["score"], ShouldEqual, 10.0)
			})
		})

		Convey("When merging into a nil entry", func() {
			var empty model.ScoreEntry
			merged := empty.Merge(model.ScoreEntry{"score": 3.0})

			Convey("Then the result holds the new fields", func() {
				So(merged, ShouldResemble, model.ScoreEntry{"score": 3.0})
			})
		})
	})
}

func TestSeedFlags(t *testing.T) {
	Convey("Given a seed", t, func() {
		seed := model.Seed{11, 22, 33, 44, 55}

		Convey("When splitting it into flags", func() {
			flags := seed.Flags()

			Convey("Then index 0 is the scalar and 1..4 the sequence", func() {
				So(flags.First, ShouldEqual, uint32(11))
				So(flags.Rest, ShouldResemble, [4]uint32{22, 33, 44, 55})
			})

			Convey("And it encodes as first/rest", func() {
				raw, err := json.Marshal(model.InitMessage(flags))
				So(err, ShouldBeNil)
				So(string(raw), ShouldEqual, `{"type":"init","payload":{"first":11,"rest":[22,33,44,55]}}`)
			})
		})
	})
}

func TestMessageWireFormat(t *testing.T) {
	tests := []struct {
		name string
		msg  model.Message
		want string
	}{
		{
			name: "empty leaderboard",
			msg:  model.LeaderboardMessage(nil),
			want: `{"type":"leaderboard","payload":[]}`,
		},
		{
			name: "leaderboard pairs",
			msg: model.LeaderboardMessage([]model.KeyedEntry{
				{Key: "k1", Entry: model.ScoreEntry{"name": "Ann"}},
			}),
			want: `{"type":"leaderboard","payload":[["k1",{"name":"Ann"}]]}`,
		},
		{
			name: "score accepted",
			msg:  model.ScoreAcceptedMessage("abc123", model.ScoreEntry{"score": 10}),
			want: `{"type":"score_accepted","payload":["abc123",{"score":10}]}`,
		},
		{
			name: "score rejected with nil entry",
			msg:  model.ScoreRejectedMessage("abc123", nil),
			want: `{"type":"score_rejected","payload":["abc123",{}]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.msg)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(raw) != tt.want {
				t.Errorf("got %s, want %s", raw, tt.want)
			}
		})
	}
}

func TestMessageDecode(t *testing.T) {
	Convey("Given inbound wire messages", t, func() {
		Convey("When decoding a submission without a key", func() {
			var msg model.Message
			err := json.Unmarshal([]byte(`{"type":"submit_score","payload":["",{"name":"Ann","score":10}]}`), &msg)

			Convey("Then it carries the sentinel key and the entry", func() {
				So(err, ShouldBeNil)
				So(msg.Type, ShouldEqual, model.MessageSubmitScore)
				So(msg.Entry.Key.IsSentinel(), ShouldBeTrue)
				So(msg.Entry.Entry["name"], ShouldEqual, "Ann")
			})
		})

		Convey("When decoding an unknown type", func() {
			var msg model.Message
			err := json.Unmarshal([]byte(`{"type":"explode","payload":null}`), &msg)

			Convey("Then it reports ErrUnknownMessage", func() {
				So(errors.Is(err, model.ErrUnknownMessage), ShouldBeTrue)
			})
		})

		Convey("When the pair has the wrong arity", func() {
			var msg model.Message
			err := json.Unmarshal([]byte(`{"type":"submit_score","payload":["k1"]}`), &msg)

			Convey("Then decoding fails", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
