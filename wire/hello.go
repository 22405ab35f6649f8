// Copyright (C) ArkDB, Inc. 2018-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package wire

import (
	"time"

	"gopkg.in/mgo.v2/bson"
)

// Hello is the decoded reply to the handshake command. Every field is
// optional on the wire; absent fields keep their zero values, and code
// consuming a Hello treats those zeros as "not reported".
type Hello struct {
	OK                    int           `bson:"ok"`
	IsWritablePrimary     bool          `bson:"isWritablePrimary"`
	Secondary             bool          `bson:"secondary"`
	ArbiterOnly           bool          `bson:"arbiterOnly"`
	Hidden                bool          `bson:"hidden"`
	IsReplicaSet          bool          `bson:"isreplicaset"`
	Msg                   string        `bson:"msg"`
	Me                    string        `bson:"me"`
	SetName               string        `bson:"setName"`
	SetVersion            uint32        `bson:"setVersion"`
	ElectionID            bson.ObjectId `bson:"electionId,omitempty"`
	Hosts                 []string      `bson:"hosts"`
	Passives              []string      `bson:"passives"`
	Arbiters              []string      `bson:"arbiters"`
	Primary               string        `bson:"primary"`
	Tags                  map[string]string `bson:"tags,omitempty"`
	MinWireVersion        int32         `bson:"minWireVersion"`
	MaxWireVersion        int32         `bson:"maxWireVersion"`
	SessionTimeoutMinutes *uint32       `bson:"logicalSessionTimeoutMinutes,omitempty"`

	LastWrite struct {
		LastWriteDate time.Time `bson:"lastWriteDate"`
	} `bson:"lastWrite"`
}

// DecodeHello decodes a raw handshake reply into a Hello record. The reply is
// decoded exactly once; callers hold on to the record, not the raw bytes.
func DecodeHello(raw bson.Raw) (*Hello, error) {
	var h Hello
	if err := raw.Unmarshal(&h); err != nil {
		return nil, err
	}
	return &h, nil
}
