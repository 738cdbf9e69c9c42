// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultTokenURI  = "/api/v1/auth/init"
	defaultPageParam = "page"
	defaultSizeParam = "per_page"
	defaultDataKey   = "data"
	defaultPageSize  = 100
	defaultSFTPPort  = 22
)

var (
	// ErrParsing reports failures that occur while decoding supplier files.
	ErrParsing = errors.New("error parsing")
	// ErrUnknownSupplier is returned when no configuration exists for a supplier.
	ErrUnknownSupplier = errors.New("unknown supplier")
	// ErrMissingSection is returned when a supplier lacks the section a reader needs.
	ErrMissingSection = errors.New("missing supplier configuration section")
)

// Supplier holds the per-supplier transport settings.
type Supplier struct {
	ID   int    `json:"id" yaml:"id"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	REST *REST  `json:"rest,omitempty" yaml:"rest,omitempty"`
	SFTP *SFTP  `json:"sftp,omitempty" yaml:"sftp,omitempty"`
}

// REST holds the settings of a paginated JSON API.
type REST struct {
	BaseURI    string     `json:"base_uri" yaml:"base_uri"`
	ItemsURI   string     `json:"items_uri" yaml:"items_uri"`
	TokenURI   string     `json:"token_uri,omitempty" yaml:"token_uri,omitempty"`
	TokenKey   string     `json:"token_key,omitempty" yaml:"token_key,omitempty"`
	ExpireKey  string     `json:"expire_key,omitempty" yaml:"expire_key,omitempty"`
	Auth       RESTAuth   `json:"auth" yaml:"auth"`
	Pagination Pagination `json:"pagination,omitempty" yaml:"pagination,omitempty"`
}

// RESTAuth holds the login credentials of a REST supplier.
type RESTAuth struct {
	Username  string `json:"username" yaml:"username"`
	Password  string `json:"password" yaml:"password"`
	CompanyID string `json:"company_id,omitempty" yaml:"company_id,omitempty"`
}

// Pagination describes how a REST API pages its results.
type Pagination struct {
	PageParam string `json:"page_param,omitempty" yaml:"page_param,omitempty"`
	SizeParam string `json:"size_param,omitempty" yaml:"size_param,omitempty"`
	PageSize  int    `json:"page_size,omitempty" yaml:"page_size,omitempty"`
	DataKey   string `json:"data_key,omitempty" yaml:"data_key,omitempty"`
}

// SFTP holds the connection settings of an SFTP supplier.
type SFTP struct {
	Host           string `json:"host" yaml:"host"`
	Port           int    `json:"port,omitempty" yaml:"port,omitempty"`
	Username       string `json:"username" yaml:"username"`
	Password       string `json:"password,omitempty" yaml:"password,omitempty"`
	PrivateKeyFile string `json:"private_key_file,omitempty" yaml:"private_key_file,omitempty"`
	// HostKey is an authorized_keys formatted public key. When empty the host key is not verified.
	HostKey string `json:"host_key,omitempty" yaml:"host_key,omitempty"`
	Proxy   *Proxy `json:"proxy,omitempty" yaml:"proxy,omitempty"`
}

// Proxy is a SOCKS5 proxy used to reach a supplier.
type Proxy struct {
	Address  string `json:"address" yaml:"address"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
}

// Address returns the host:port pair to dial.
func (s *SFTP) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Suppliers indexes supplier configurations by id.
type Suppliers struct {
	suppliers map[int]*Supplier
}

// NewSuppliers indexes the given configurations, the last one wins on duplicate ids.
func NewSuppliers(configs ...*Supplier) *Suppliers {
	suppliers := &Suppliers{suppliers: make(map[int]*Supplier, len(configs))}
	for _, config := range configs {
		suppliers.suppliers[config.ID] = config
	}
	return suppliers
}

// Supplier returns the configuration of supplier id.
func (s *Suppliers) Supplier(id int) (*Supplier, error) {
	if s != nil {
		if supplier, ok := s.suppliers[id]; ok {
			return supplier, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownSupplier, id)
}

// RESTFor returns the REST section of supplier id.
func (s *Suppliers) RESTFor(id int) (*REST, error) {
	supplier, err := s.Supplier(id)
	if err != nil {
		return nil, err
	}
	if supplier.REST == nil {
		return nil, fmt.Errorf("%w: rest for supplier %d", ErrMissingSection, id)
	}
	return supplier.REST, nil
}

// SFTPFor returns the SFTP section of supplier id.
func (s *Suppliers) SFTPFor(id int) (*SFTP, error) {
	supplier, err := s.Supplier(id)
	if err != nil {
		return nil, err
	}
	if supplier.SFTP == nil {
		return nil, fmt.Errorf("%w: sftp for supplier %d", ErrMissingSection, id)
	}
	return supplier.SFTP, nil
}

// IDs returns the configured supplier ids in ascending order.
func (s *Suppliers) IDs() []int {
	ids := make([]int, 0, len(s.suppliers))
	for id := range s.suppliers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// NewSuppliersFromPath parses the file at path, a stream of YAML or JSON documents each holding
// one supplier. Defaults are applied and every document is validated.
func NewSuppliersFromPath(path string) (*Suppliers, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	configs := make([]*Supplier, 0)
	for {
		config := new(Supplier)
		err := decoder.Decode(&config)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			return nil, fmt.Errorf("%w %q: %w", ErrParsing, path, err)
		}

		if config == nil {
			continue
		}

		if err := config.validate(); err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrParsing, path, err)
		}
		config.applyDefaults()
		configs = append(configs, config)
	}

	return NewSuppliers(configs...), nil
}

func (s *Supplier) validate() error {
	missingFields := []string{}
	if s.ID <= 0 {
		missingFields = append(missingFields, "id")
	}

	if s.REST != nil {
		if s.REST.BaseURI == "" {
			missingFields = append(missingFields, "rest.base_uri")
		}
		if s.REST.ItemsURI == "" {
			missingFields = append(missingFields, "rest.items_uri")
		}
	}

	if s.SFTP != nil {
		if s.SFTP.Host == "" {
			missingFields = append(missingFields, "sftp.host")
		}
		if s.SFTP.Username == "" {
			missingFields = append(missingFields, "sftp.username")
		}
		if s.SFTP.Proxy != nil && s.SFTP.Proxy.Address == "" {
			missingFields = append(missingFields, "sftp.proxy.address")
		}
	}

	if len(missingFields) > 0 {
		return fmt.Errorf("supplier %d: missing required fields: %s", s.ID, strings.Join(missingFields, ", "))
	}
	return nil
}

func (s *Supplier) applyDefaults() {
	if rest := s.REST; rest != nil {
		if rest.TokenURI == "" {
			rest.TokenURI = defaultTokenURI
		}
		if rest.Pagination.PageParam == "" {
			rest.Pagination.PageParam = defaultPageParam
		}
		if rest.Pagination.SizeParam == "" {
			rest.Pagination.SizeParam = defaultSizeParam
		}
		if rest.Pagination.PageSize <= 0 {
			rest.Pagination.PageSize = defaultPageSize
		}
		if rest.Pagination.DataKey == "" {
			rest.Pagination.DataKey = defaultDataKey
		}
	}

	if s.SFTP != nil && s.SFTP.Port == 0 {
		s.SFTP.Port = defaultSFTPPort
	}
}
