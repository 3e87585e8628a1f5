// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package relbase

import (
	"bufio"
	"bytes"
	"io"
)

type fastaRecord struct {
	Name string
	Seq  []byte
}

// readFasta returns the records in rdr in order. Sequence bytes are
// kept as read (lowercase stays lowercase, so Classify rejects it).
// Lines of a record are concatenated. Sequence lines that
// appear before any ">" header are treated as one record per line, so
// plain one-sequence-per-line files work too.
func readFasta(rdr io.Reader) ([]fastaRecord, error) {
	var recs []fastaRecord
	inRecord := false
	scanner := bufio.NewScanner(rdr)
	scanner.Buffer(make([]byte, 64*1024), 1<<30)
	for scanner.Scan() {
		data := bytes.TrimRight(scanner.Bytes(), " \t\r")
		if len(data) == 0 {
			continue
		} else if data[0] == '>' {
			recs = append(recs, fastaRecord{Name: string(bytes.TrimSpace(data[1:]))})
			inRecord = true
		} else if !inRecord {
			recs = append(recs, fastaRecord{Seq: append([]byte(nil), data...)})
		} else {
			last := &recs[len(recs)-1]
			last.Seq = append(last.Seq, data...)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}
