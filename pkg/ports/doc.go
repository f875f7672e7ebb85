/*
Package ports defines the driven ports (interfaces) the session core depends on.

These interfaces decouple the session factories from the storage that backs them,
allowing the same composite session logic to run on an in-process map or on Redis.

# Key Interfaces

  - Locator / Creator / Remover: the minimal lookup, creation and removal SPI every
    metadata and attributes factory implements.
  - Cache: the byte-level key/value store the factories map their entries onto.
  - Batcher / Batch: the transactional scope opened around one logical operation.
  - Mutator: the "this entry is dirty" signal raised by mutable views.
  - Marshaller: the codec between entries and their replicated form.
  - DistributedLocker: cluster-wide mutual exclusion for a session id.
*/
package ports
