// Copyright 2025 Poiesic Systems
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


package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/poiesic/mentormatch/core"
)

// AttributeVectorMUS is the MUS serializer for core.AttributeVector.
// Field order: SubjectID, AttributeName, Vector, CreatedAt, UpdatedAt.
var AttributeVectorMUS mus.Serializer[core.AttributeVector] = attributeVectorSer{}

var float32SliceMUS = ord.NewSliceSer[float32](raw.Float32)

type attributeVectorSer struct{}

func (s attributeVectorSer) Marshal(v core.AttributeVector, bs []byte) (n int) {
	n = ord.String.Marshal(v.SubjectID, bs)
	n += ord.String.Marshal(v.AttributeName, bs[n:])
	n += float32SliceMUS.Marshal(v.Vector, bs[n:])
	n += raw.TimeUnixMicroUTC.Marshal(v.CreatedAt, bs[n:])
	n += raw.TimeUnixMicroUTC.Marshal(v.UpdatedAt, bs[n:])
	return
}

func (s attributeVectorSer) Unmarshal(bs []byte) (v core.AttributeVector, n int, err error) {
	var n1 int
	if v.SubjectID, n1, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	n += n1
	if v.AttributeName, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Vector, n1, err = float32SliceMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.CreatedAt, n1, err = raw.TimeUnixMicroUTC.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	v.UpdatedAt, n1, err = raw.TimeUnixMicroUTC.Unmarshal(bs[n:])
	n += n1
	return
}

func (s attributeVectorSer) Size(v core.AttributeVector) (size int) {
	size = ord.String.Size(v.SubjectID)
	size += ord.String.Size(v.AttributeName)
	size += float32SliceMUS.Size(v.Vector)
	size += raw.TimeUnixMicroUTC.Size(v.CreatedAt)
	return size + raw.TimeUnixMicroUTC.Size(v.UpdatedAt)
}

func (s attributeVectorSer) Skip(bs []byte) (n int, err error) {
	var n1 int
	if n, err = ord.String.Skip(bs); err != nil {
		return
	}
	if n1, err = ord.String.Skip(bs[n:]); err != nil {
		return
	}
	n += n1
	if n1, err = float32SliceMUS.Skip(bs[n:]); err != nil {
		return
	}
	n += n1
	if n1, err = raw.TimeUnixMicroUTC.Skip(bs[n:]); err != nil {
		return
	}
	n += n1
	n1, err = raw.TimeUnixMicroUTC.Skip(bs[n:])
	n += n1
	return
}

// MarshalAttributeVector serializes an AttributeVector to bytes.
func MarshalAttributeVector(vector *core.AttributeVector) []byte {
	buf := make([]byte, AttributeVectorMUS.Size(*vector))
	AttributeVectorMUS.Marshal(*vector, buf)
	return buf
}

// UnmarshalAttributeVector deserializes an AttributeVector from bytes.
func UnmarshalAttributeVector(data []byte) (*core.AttributeVector, error) {
	vector, n, err := AttributeVectorMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrTruncatedData, len(data)-n)
	}
	return &vector, nil
}

// Timestamp returns the current time truncated to the precision kept by
// the serializer, so stored and returned values compare equal.
func Timestamp() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
