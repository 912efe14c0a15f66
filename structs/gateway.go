// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package structs

import (
	"errors"
	"fmt"
	"strings"
)

const resourceSeparator = "/"

var errEmptyResource = errors.New("invalid resource name: empty")

// Gateway identifies a WAF gateway instance in the Management Server inventory.
type Gateway struct {
	// Name is the gateway's name in the inventory. It is the same as the instance name.
	Name string
	// ResourceName is the full resource path the name was parsed from.
	ResourceName string
}

// ParseGateway parses a resource path such as
// "projects/p/zones/us-east1-b/instances/gw-auto-123" into a Gateway.
// The gateway name is the final "/" delimited segment of the path.
func ParseGateway(resourceName string) (Gateway, error) {
	var gw Gateway
	if resourceName == "" {
		return gw, errEmptyResource
	}

	parts := strings.Split(resourceName, resourceSeparator)
	name := parts[len(parts)-1]
	if name == "" {
		return gw, fmt.Errorf("invalid resource name: %s", resourceName)
	}

	gw.Name = name
	gw.ResourceName = resourceName
	return gw, nil
}

func (g Gateway) String() string {
	return g.Name
}
