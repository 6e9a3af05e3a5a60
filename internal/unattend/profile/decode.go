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

	"github.com/mitchellh/mapstructure"
)

// raw is the wire-format shape a Profile is decoded from, whether the
// source is a map[string]any (JSON/YAML already unmarshaled by the
// caller) or an HCL file. Field tags mirror the `mapstructure:"..."`
// convention the Packer builders in the reference pack use for their own
// configuration structs.
type raw struct {
	InstallationISO  string `mapstructure:"installation_iso" hcl:"installation_iso"`
	AdditionsISO     string `mapstructure:"additions_iso" hcl:"additions_iso,optional"`
	InstallAdditions bool   `mapstructure:"install_additions" hcl:"install_additions,optional"`
	ValidationKitISO string `mapstructure:"validation_kit_iso" hcl:"validation_kit_iso,optional"`
	InstallTestExec  bool   `mapstructure:"install_test_exec" hcl:"install_test_exec,optional"`

	Login    string `mapstructure:"login" hcl:"login"`
	Password string `mapstructure:"password" hcl:"password"`
	FullName string `mapstructure:"full_name" hcl:"full_name,optional"`

	ProductKey string `mapstructure:"product_key" hcl:"product_key,optional"`

	Locale   string `mapstructure:"locale" hcl:"locale,optional"`
	Language string `mapstructure:"language" hcl:"language,optional"`
	Country  string `mapstructure:"country" hcl:"country,optional"`
	Timezone string `mapstructure:"timezone" hcl:"timezone,optional"`

	Hostname string `mapstructure:"hostname" hcl:"hostname,optional"`

	PackageSelection []string `mapstructure:"package_selection" hcl:"package_selection,optional"`

	PostInstallCommand string `mapstructure:"post_install_command" hcl:"post_install_command,optional"`

	ExtraInstallKernelParameters string `mapstructure:"extra_install_kernel_parameters" hcl:"extra_install_kernel_parameters,optional"`

	Proxy string `mapstructure:"proxy" hcl:"proxy,optional"`

	MainScriptTemplate string `mapstructure:"main_script_template" hcl:"main_script_template,optional"`
	PostScriptTemplate string `mapstructure:"post_script_template" hcl:"post_script_template,optional"`

	ImageIndex    int  `mapstructure:"image_index" hcl:"image_index,optional"`
	HasImageIndex bool `mapstructure:"-" hcl:"-"`

	AuxiliaryBasePath string `mapstructure:"auxiliary_base_path" hcl:"auxiliary_base_path,optional"`

	AvoidUpdatesOverNetwork bool `mapstructure:"avoid_updates_over_network" hcl:"avoid_updates_over_network,optional"`
}

func (r raw) apply(p *Profile) error {
	if err := p.SetInstallationISOPath(r.InstallationISO); err != nil {
		return err
	}
	if err := p.SetAdditionsISO(r.AdditionsISO, r.InstallAdditions); err != nil {
		return err
	}
	if err := p.SetValidationKitISO(r.ValidationKitISO, r.InstallTestExec); err != nil {
		return err
	}
	if err := p.SetCredentials(r.Login, r.Password, r.FullName); err != nil {
		return err
	}
	if err := p.SetProductKey(r.ProductKey); err != nil {
		return err
	}
	if r.Locale != "" || r.Language != "" || r.Country != "" {
		if err := p.SetLocale(r.Locale, r.Language, r.Country); err != nil {
			return err
		}
	}
	if err := p.SetTimezone(r.Timezone); err != nil {
		return err
	}
	if r.Hostname != "" {
		if err := p.SetHostname(r.Hostname); err != nil {
			return err
		}
	}
	for _, kw := range r.PackageSelection {
		if err := p.AddPackageSelectionKeyword(kw); err != nil {
			return err
		}
	}
	if err := p.SetPostInstallCommand(r.PostInstallCommand); err != nil {
		return err
	}
	if err := p.SetExtraInstallKernelParameters(r.ExtraInstallKernelParameters); err != nil {
		return err
	}
	if err := p.SetProxy(r.Proxy); err != nil {
		return err
	}
	if r.MainScriptTemplate != "" || r.PostScriptTemplate != "" {
		if err := p.SetScripts(ScriptOverride{MainTemplatePath: r.MainScriptTemplate, PostTemplatePath: r.PostScriptTemplate}); err != nil {
			return err
		}
	}
	if r.HasImageIndex {
		if err := p.SetImageIndex(r.ImageIndex); err != nil {
			return err
		}
	}
	if err := p.SetAuxiliaryBasePath(r.AuxiliaryBasePath); err != nil {
		return err
	}
	if err := p.SetAvoidUpdatesOverNetwork(r.AvoidUpdatesOverNetwork); err != nil {
		return err
	}
	return nil
}

// FromMap decodes a loosely-typed map (as produced by encoding/json or
// gopkg.in/yaml.v3 unmarshaling into map[string]any) into a new Profile,
// using mapstructure the way the Packer builder configs in the reference
// pack decode their HCL2/JSON configuration.
func FromMap(m map[string]interface{}) (*Profile, error) {
	var r raw
	_, hasIdx := m["image_index"]
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &r,
	})
	if err != nil {
		return nil, fmt.Errorf("profile: build decoder: %w", err)
	}
	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("profile: decode: %w", err)
	}
	r.HasImageIndex = hasIdx

	p := New()
	if err := r.apply(p); err != nil {
		return nil, err
	}
	return p, nil
}
