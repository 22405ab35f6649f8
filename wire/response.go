// Copyright (C) ArkDB, Inc. 2018-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package wire

import "gopkg.in/mgo.v2/bson"

// Response is the subset of a command reply consulted for error
// classification. The full reply stays with the caller; this record is
// decoded once and only carries the outcome fields.
type Response struct {
	OK                int                `bson:"ok"`
	Code              int32              `bson:"code"`
	CodeName          string             `bson:"codeName"`
	ErrMsg            string             `bson:"errmsg"`
	WriteConcernError *WriteConcernError `bson:"writeConcernError"`
}

// WriteConcernError is the error document nested in an otherwise successful
// reply when the requested durability guarantee was not met. ErrInfo keeps
// the server's diagnostic payload as raw bytes so it survives verbatim.
type WriteConcernError struct {
	Code     int32    `bson:"code"`
	CodeName string   `bson:"codeName"`
	ErrMsg   string   `bson:"errmsg"`
	ErrInfo  bson.Raw `bson:"errInfo"`
}

// DecodeResponse decodes the outcome fields of a raw command reply.
func DecodeResponse(raw bson.Raw) (*Response, error) {
	var r Response
	if err := raw.Unmarshal(&r); err != nil {
		return nil, err
	}
	return &r, nil
}
