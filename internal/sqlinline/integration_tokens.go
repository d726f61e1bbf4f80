package sqlinline

// Provider API keys rotated at runtime by cmd/providerkey.

const QSelectIntegrationToken = `--sql 3c1f9e47-5a2b-4d8e-9b61-0f7a2c4d8e15
select token
from integration_tokens
where provider = $1::text;
`

// QUpsertIntegrationToken merges new properties over the stored ones.
const QUpsertIntegrationToken = `--sql 9e6b2d81-4f3a-4c7e-a5d9-7b1c0e8f2a64
insert into integration_tokens (id, provider, token, properties)
values (gen_random_uuid(), $1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb))
on conflict (provider) do update set
    token = excluded.token,
    properties = integration_tokens.properties || excluded.properties,
    updated_at = now();
`
