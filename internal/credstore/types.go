package credstore

import (
	"github.com/vmihailenco/msgpack/v5"
)

type dbCredentials struct {
	UserID   int64  `msgpack:"userId"`
	Username string `msgpack:"username"`
	Email    string `msgpack:"email"`
	Token    string `msgpack:"token"`
	SavedAt  int64  `msgpack:"savedAt"`
}

func (c *dbCredentials) MarshalBinary() (data []byte, err error) {
	type alias dbCredentials
	return msgpack.Marshal((*alias)(c))
}

func (c *dbCredentials) UnmarshalBinary(data []byte) error {
	type alias dbCredentials
	return msgpack.Unmarshal(data, (*alias)(c))
}
