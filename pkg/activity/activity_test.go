package activity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalActivity(t *testing.T) {
	act, err := UnmarshalActivity([]byte(`{
	  "@context": "https://www.w3.org/ns/activitystreams",
	  "id": "https://b.example/activities/1",
	  "type": "Follow",
	  "actor": "https://b.example/users/bob",
	  "object": "https://a.example/users/alice"
	}`))
	require.NoError(t, err)
	assert.Equal(t, "https://b.example/activities/1", act.ID)
	assert.Equal(t, TypeFollow, act.Type)
	assert.Equal(t, "https://b.example/users/bob", act.Actor)
}

func TestUnmarshalActivityRequiredFields(t *testing.T) {
	for name, doc := range map[string]string{
		"not JSON":      `{`,
		"missing id":    `{"type":"Follow","actor":"https://b.example/users/bob"}`,
		"missing type":  `{"id":"https://b.example/activities/1","actor":"https://b.example/users/bob"}`,
		"missing actor": `{"id":"https://b.example/activities/1","type":"Follow"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := UnmarshalActivity([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestObjectID(t *testing.T) {
	bare, err := UnmarshalActivity([]byte(`{"id":"x","type":"Follow","actor":"a","object":"https://a.example/users/alice"}`))
	require.NoError(t, err)
	id, err := bare.ObjectID()
	require.NoError(t, err)
	assert.Equal(t, "https://a.example/users/alice", id)

	embedded, err := UnmarshalActivity([]byte(`{"id":"x","type":"Undo","actor":"a","object":{"id":"https://b.example/activities/1","type":"Follow"}}`))
	require.NoError(t, err)
	id, err = embedded.ObjectID()
	require.NoError(t, err)
	assert.Equal(t, "https://b.example/activities/1", id)

	missing, err := UnmarshalActivity([]byte(`{"id":"x","type":"Follow","actor":"a"}`))
	require.NoError(t, err)
	_, err = missing.ObjectID()
	assert.Error(t, err)
}

func TestInnerActivity(t *testing.T) {
	act, err := UnmarshalActivity([]byte(`{
	  "id": "https://b.example/activities/2",
	  "type": "Undo",
	  "actor": "https://b.example/users/bob",
	  "object": {
	    "id": "https://b.example/activities/1",
	    "type": "Follow",
	    "actor": "https://b.example/users/bob",
	    "object": "https://a.example/users/alice"
	  }
	}`))
	require.NoError(t, err)

	inner, err := act.InnerActivity()
	require.NoError(t, err)
	assert.Equal(t, TypeFollow, inner.Type)
	assert.Equal(t, "https://b.example/users/bob", inner.Actor)

	bareObject, err := UnmarshalActivity([]byte(`{"id":"x","type":"Undo","actor":"a","object":"https://b.example/activities/1"}`))
	require.NoError(t, err)
	_, err = bareObject.InnerActivity()
	assert.Error(t, err)
}

func TestUnmarshalActor(t *testing.T) {
	actor, err := UnmarshalActor([]byte(`{
	  "id": "https://b.example/users/bob",
	  "type": "Person",
	  "inbox": "https://b.example/users/bob/inbox",
	  "publicKey": {
	    "id": "https://b.example/users/bob#main-key",
	    "owner": "https://b.example/users/bob",
	    "publicKeyPem": "-----BEGIN PUBLIC KEY-----\n...\n-----END PUBLIC KEY-----\n"
	  }
	}`))
	require.NoError(t, err)
	assert.Equal(t, "https://b.example/users/bob/inbox", actor.Inbox)
	assert.Equal(t, "https://b.example/users/bob#main-key", actor.PublicKey.ID)

	for name, doc := range map[string]string{
		"missing inbox": `{"id":"x","publicKey":{"id":"k","publicKeyPem":"p"}}`,
		"missing key":   `{"id":"x","inbox":"i"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := UnmarshalActor([]byte(doc))
			assert.Error(t, err)
		})
	}
}
