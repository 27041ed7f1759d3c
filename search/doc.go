// Copyright 2026 Corvid Labs
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


// Package search provides hybrid lexical and vector retrieval.
//
// The Searcher type runs two independent scorers over one candidate pool:
//   - A lexical scorer over the inverted posting index, TF-IDF weighted
//   - A vector scorer over stored embeddings, cosine similarity
//
// Each scorer's outputs are min-max normalized to [0,1] over the candidate
// set, then fused with a configurable weighted sum (equal weights by
// default). When no query vector is supplied, or no candidate carries an
// embedding, ranking degrades to pure lexical scoring with identical output
// to a lexical-only run.
//
// The package also exports the Tokenize function ingestion uses to build
// postings, so stored terms and query terms always agree.
package search
