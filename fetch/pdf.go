// Copyright 2025 Openlexica
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


package fetch

import (
	"bytes"
	"context"
	"fmt"

	"github.com/openlexica/legisport/core"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// ProbePDF checks whether a scan-only companion PDF exists for an
// identifier. Returns the PDF URL when the probe retrieves a valid
// PDF; a *NotFoundError when the source has none; ErrNotPDF when the
// URL serves something that is not a usable PDF.
//
// Probe responses are not cached: a fallback marker is delivered at
// most once per identifier, so the URL is fetched at most once per
// checkpoint lifetime.
func (c *Client) ProbePDF(ctx context.Context, ident core.DocumentIdentifier) (string, error) {
	url := c.PDFURL(ident)

	content, err := c.fetchLive(ctx, url)
	if err != nil {
		return "", err
	}

	if err := api.Validate(bytes.NewReader(content.Body), nil); err != nil {
		c.logger.Debug("probe target failed PDF validation", "url", url, "error", err)
		return "", fmt.Errorf("%w: %s", ErrNotPDF, url)
	}

	return url, nil
}
