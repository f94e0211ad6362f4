/*
Package config loads the node's on-disk configuration: home directory
layout, listen addresses, and genesis file location, following the
teacher's own use of gopkg.in/yaml.v3 for on-disk configuration files.
*/
package config
