// Copyright (C) 2025 The vbox-unattend Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package profile

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// hclDoc is the top-level block LoadHCL parses a `.vboxunattend.hcl` file
// into, before it is folded into a Profile via raw.apply. raw's own
// `hcl:"..."` struct tags double as the block schema.
type hclDoc struct {
	Profile raw `hcl:"profile,block"`
}

// LoadHCL reads a packer-flavored profile file of the form
//
//	profile {
//	  installation_iso = "/isos/win10.iso"
//	  login             = "vboxuser"
//	  password          = "..."
//	  hostname          = "vm.local"
//	}
//
// into a new Profile, the way the Packer plugin builders in the reference
// pack load their own `.pkr.hcl` configuration blocks via hclsimple.
func LoadHCL(path string) (*Profile, error) {
	var doc hclDoc
	if err := hclsimple.DecodeFile(path, nil, &doc); err != nil {
		return nil, fmt.Errorf("profile: decode hcl %s: %w", path, err)
	}

	r := doc.Profile
	r.HasImageIndex = r.ImageIndex != 0

	p := New()
	if err := r.apply(p); err != nil {
		return nil, err
	}
	return p, nil
}
