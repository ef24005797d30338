// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package grpc

import "encoding/json"

// codecName is registered with grpc's encoding registry and must match the
// content-subtype negotiated by clients dialing with
// grpc.CallContentSubtype(codecName).
const codecName = "json"

// jsonCodec lets this service's plain Go structs (messages.go) travel over
// grpc without a protoc-generated .pb.go: grpc.Codec only requires
// Marshal/Unmarshal, and json.Marshal/Unmarshal on exported struct fields
// satisfies that contract without fabricating a protobuf schema for a
// control-plane surface that has none upstream.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}
